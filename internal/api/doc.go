// Package api defines the wire-format types shared by the HTTP server and its
// clients.
//
// # Key Types
//
// HealthResponse and SystemResponse: daemon liveness and encode server status.
//
// PreviewSessionRequest / PreviewSession: frame preview session lifecycle.
//
// CommandResponse: acknowledgement of a forwarded command with its request id.
//
// # Query Codecs
//
// EncodeQueueFilter / ParseQueueFilter translate view.Filter to and from the
// /api/queue query string. EncodeMessageQuery / ParseMessageQuery do the same
// for /api/messages/changes. Both sides of the wire use these so a filter
// round-trips exactly.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Dates in query
// strings accept either a calendar day (2006-01-02, local midnight) or an
// RFC 3339 timestamp; the encoder always emits RFC 3339 so no precision is
// lost.
package api
