// Package relay implements the WebSocket action relay.
//
// Every inbound text frame is routed by Route: broadcasts go to every open
// connection, bare actions are echoed to the sender, and anything malformed
// gets an error reply on the sender's connection only. Connections live in a
// Hub actor (single goroutine + command channel); each connection has its own
// writer goroutine so a slow client never blocks the others.
package relay
