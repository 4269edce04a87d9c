// Package httpserver wraps http.Server with validation and graceful
// shutdown for the engine's read-only introspection endpoints.
package httpserver
