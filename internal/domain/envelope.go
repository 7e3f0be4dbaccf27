package domain

import "encoding/json"

// EnvelopeKind is the "kind" field of a relay frame.
type EnvelopeKind string

const (
	KindHello        EnvelopeKind = "hello"
	KindBroadcast    EnvelopeKind = "broadcast"
	KindAction       EnvelopeKind = "action"
	KindError        EnvelopeKind = "error"
	KindToggleListen EnvelopeKind = "toggle-listen"
)

// Envelope is the JSON frame exchanged between relay and clients.
type Envelope struct {
	Kind    EnvelopeKind    `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	From    string          `json:"from,omitempty"`
}

func ActionEnvelope(payload []byte) Envelope {
	return Envelope{Kind: KindAction, Payload: payload}
}

func BroadcastEnvelope(payload []byte) Envelope {
	return Envelope{Kind: KindBroadcast, Payload: payload}
}

func ErrorEnvelope(message string) Envelope {
	return Envelope{Kind: KindError, Error: message}
}

func HelloEnvelope(from string) Envelope {
	return Envelope{Kind: KindHello, From: from}
}
