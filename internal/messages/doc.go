// Package messages keeps the sequenced feed of operation results shown to
// users as notifications.
//
// Hub holds the newest messages in memory and wakes long-polling readers when
// a new one arrives. Archive is an optional SQLite sink that keeps every
// message so readers that fell behind the in-memory window can still page
// through history.
package messages
