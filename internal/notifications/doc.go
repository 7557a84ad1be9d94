// Package notifications pushes operation result messages to an ntfy topic.
//
// A Notifier is registered as a message hub sink. Delivery runs on its own
// goroutine behind a bounded queue so a slow or unreachable ntfy server never
// stalls event ingestion; pushes that do not fit are dropped with a warning.
package notifications
