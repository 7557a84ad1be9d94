// Package daemon coordinates the long-running encmirror process.
//
// It wires configuration, the state mirror, the message hub and its optional
// SQLite archive, the preview session manager, the ingest socket, and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances.
//
// Every event arriving on the ingest socket passes through Daemon.Apply,
// which updates the mirror and turns operation results into user-facing
// messages. HTTP handlers only read from the mirror, except for commands,
// which are forwarded to the encode server unchanged.
//
// Keep orchestration here: replication semantics live in mirror, view shaping
// in view, and wire types in api.
package daemon
