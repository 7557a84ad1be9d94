// Package view materializes read models from mirrored state: the filtered
// queue list with derived labels, per-state counters, a change digest, and
// the console panel.
//
// Builders take plain copies (model.QueueState, model.ConsoleState) so they
// never hold the mirror lock while filtering.
package view
