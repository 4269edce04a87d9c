// Package api exposes the engine's read-only status introspection surface.
package api
