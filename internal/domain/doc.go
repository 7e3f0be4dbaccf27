// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files: action.go and view.go (the action variant and its decoder),
// envelope.go (relay wire frames), catalog.go (expression catalog), connection.go,
// target.go (the render target contract) and errors.go. No implementation code beyond
// decoding and lookup.
package domain
