// Package preview manages short-lived frame preview sessions over queued
// recordings.
//
// A session binds a job's source file and broadcast service to an open
// FrameSource. Sessions expire after an idle TTL; every manager call sweeps
// expired sessions. Frame grabs on one session are serialized by that
// session's mutex while different sessions run in parallel.
package preview
