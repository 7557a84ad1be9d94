// Package event defines the push contract between the encode server and the
// mirror: a closed set of event kinds, the envelope that frames them on the
// ingest socket, and the pass-through commands sent back the other way.
//
// Events are plain value types implementing the sealed Event interface, so a
// single type switch in the mirror covers every kind. Validate rejects events
// that lack the fields their kind requires; such events are dropped, never
// applied.
package event
