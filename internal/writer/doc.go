// Package writer persists check results and endpoint metadata, reflects the
// outcome back into the registry, and triggers the notification collaborator
// on threshold crossings.
package writer
