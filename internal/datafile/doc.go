// Package datafile persists small lists of records to disk in a versioned
// binary format.
//
// The current format is a magic header followed by a zstd frame holding the
// CBOR-encoded list. Files written by earlier releases as a plain JSON array
// still load; Read rewrites them in the current format after a successful
// legacy decode.
package datafile
