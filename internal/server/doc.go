// Package server implements the WebSocket push channel.
//
// Clients connect once and drive sessions over the channel: clone
// requests start sessions, recovery requests reattach to or offer
// resumption of earlier ones, and every session emits status, progress,
// and asset events back over the same connection. Losing the connection
// interrupts the sessions it was driving, which is what makes them
// recoverable later.
package server
