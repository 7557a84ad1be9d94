// Package logging builds the slog loggers used by encmirrord and the CLI.
//
// The console format prints a "[component] Job #N · Slot S" subject ahead of
// the message; the json format uses short ts/level/msg keys.
package logging
