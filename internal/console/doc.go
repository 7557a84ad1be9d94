// Package console keeps the bounded per-slot text buffers that mirror the
// encode server's worker consoles, and decodes their raw byte streams into
// lines in the server's character set.
package console
