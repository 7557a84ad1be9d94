// Package replica keeps a client-side copy of the mirrored queue over the
// encmirrord HTTP API.
//
// Client is a typed wrapper for every API route the CLI uses. Replica builds
// on it: the first Sync loads the full snapshot, later syncs pull only the
// queue changes since the local version and fall back to a full reload when
// the daemon reports the history is gone, a version is skipped, or the local
// digest disagrees with the daemon's.
package replica
