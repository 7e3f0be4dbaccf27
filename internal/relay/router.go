package relay

import (
	"bytes"
	"encoding/json"

	"github.com/pscheid92/actionrelay/internal/domain"
)

// Outcome names how an inbound frame was routed.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeHello     Outcome = "hello"
	OutcomeBroadcast Outcome = "broadcast"
	OutcomeSignal    Outcome = "signal"
	OutcomeEcho      Outcome = "echo"
	OutcomeError     Outcome = "error"
)

// Decision is the routing result for one inbound frame.
type Decision struct {
	Outcome Outcome
	// Frame is the outbound frame: delivered to everyone for broadcast and
	// signal outcomes, to the sender for echo and error outcomes.
	Frame []byte
	// From carries the peer name of a hello greeting.
	From string
}

// ToAll reports whether Frame goes to every open connection.
func (d Decision) ToAll() bool {
	return d.Outcome == OutcomeBroadcast || d.Outcome == OutcomeSignal
}

type envelopeHead struct {
	Kind    json.RawMessage `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	From    json.RawMessage `json:"from"`
}

// Route decides what to do with one inbound frame. It never fails: every
// malformed input maps to an error reply.
func Route(raw []byte) Decision {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return Decision{Outcome: OutcomeIgnored}
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return errorDecision(err.Error())
	}

	if _, isObject := value.(map[string]any); isObject {
		var head envelopeHead
		if err := json.Unmarshal(data, &head); err != nil {
			return errorDecision(err.Error())
		}

		switch domain.EnvelopeKind(stringField(head.Kind)) {
		case domain.KindBroadcast:
			if domain.IsAction(head.Payload) {
				return encode(OutcomeBroadcast, domain.ActionEnvelope(head.Payload))
			}
		case domain.KindHello:
			// A hello that is also action-shaped is echoed like any other action.
			if !domain.IsAction(data) {
				return Decision{Outcome: OutcomeHello, From: stringField(head.From)}
			}
		case domain.KindToggleListen:
			return Decision{Outcome: OutcomeSignal, Frame: data}
		}
	}

	if domain.IsAction(data) {
		return encode(OutcomeEcho, domain.ActionEnvelope(data))
	}
	return errorDecision(domain.ErrInvalidPayload.Error())
}

func errorDecision(message string) Decision {
	return encode(OutcomeError, domain.ErrorEnvelope(message))
}

func encode(outcome Outcome, env domain.Envelope) Decision {
	frame, err := json.Marshal(env)
	if err != nil {
		// Only reachable for payloads json.Unmarshal already accepted.
		frame, _ = json.Marshal(domain.ErrorEnvelope(err.Error()))
		outcome = OutcomeError
	}
	return Decision{Outcome: outcome, Frame: frame}
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
