// Package resource defines the watched SEP2 resources as hydrated,
// read-only snapshots and loads them from the store by change or
// deletion timestamp.
//
// Every entity reaches its aggregator through its Site, which the
// repository joins in before the entity leaves this package. Nothing
// downstream needs a database session to resolve ownership.
package resource
