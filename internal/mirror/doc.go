// Package mirror holds the in-memory replica of encode server state.
//
// Push events are applied through Mirror.Apply, a single dispatcher over the
// closed event.Event set. Every mutation of the job list advances the queue
// version and, for deltas, is recorded in a bounded change log so clients can
// catch up with QueryChanges. All reads return deep copies taken under the
// same lock that guards mutation.
package mirror
