// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// MPEG-TS recordings, including the program (service) table that preview
// sessions use to pick the right video stream.
package ffprobe
