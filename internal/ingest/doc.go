// Package ingest is the push channel between the encode server and the
// mirror.
//
// The encode server (the collaborator) connects to a Unix domain socket and
// streams CBOR-encoded event envelopes. Server decodes them in arrival order
// and hands each to a single Sink. Commands flow the other way over the same
// connection via Forward. Only one collaborator session is active at a time:
// a new connection replaces the previous one.
//
// Dial opens the collaborator side of the socket and is used by tests and
// replay tooling.
package ingest
