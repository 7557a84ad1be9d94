// Package model defines the encode server's replicated state: queue jobs,
// profiles, service settings, DRCS mappings, logs, and host information.
//
// Every type that holds a slice, map, or pointer has a Clone method returning
// a fully independent copy; the mirror relies on these to hand out snapshots
// that later mutations cannot reach.
package model
