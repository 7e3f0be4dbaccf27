// Package transport is the client side of the relay connection.
//
// Client keeps one WebSocket connection open to the relay, reconnecting at a
// fixed interval for as long as its context lives. Incoming action frames are
// decoded and handed to a Submitter; error frames are logged; toggle-listen
// signals are surfaced through a callback. Queue state is owned elsewhere and
// survives reconnects untouched.
package transport
