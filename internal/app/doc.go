// Package app provides the client-side application layer.
//
// Controller is the single entry point for incoming actions, regardless of their
// source (relay frames, local triggers). It handles the out-of-band control actions
// (clearQueue, stopAll) immediately and routes everything else through the queue.
package app
