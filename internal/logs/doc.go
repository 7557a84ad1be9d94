// Package logs reads the encmirrord log file for the CLI.
//
// Last returns the final N lines with the offset they end at, and Follow
// polls from an offset, handing each new line to a callback until the
// context ends. A file that shrinks below the offset is treated as rotated
// and read again from the start.
package logs
