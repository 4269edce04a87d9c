// Package storage defines the persistence boundary for endpoint
// configuration and check results. The sqlite subpackage provides the
// concrete implementation.
package storage
