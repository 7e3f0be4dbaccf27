package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType is the "type" discriminator of an action payload.
type ActionType string

const (
	ActionExpression ActionType = "expression"
	ActionMotion     ActionType = "motion"
	ActionAudio      ActionType = "audio"
	ActionStopAll    ActionType = "stopAll"
	ActionClearQueue ActionType = "clearQueue"
	ActionPing       ActionType = "ping"
	ActionSequence   ActionType = "sequence"
	ActionViewSet    ActionType = "view.set"
	ActionViewPanBy  ActionType = "view.panBy"
	ActionViewZoomBy ActionType = "view.zoomBy"
	ActionViewCenter ActionType = "view.center"
	ActionViewFit    ActionType = "view.fit"
)

const (
	MinMotionPriority     = 0
	MaxMotionPriority     = 3
	DefaultMotionPriority = MaxMotionPriority
	DefaultVolume         = 1.0
	DefaultCrossOrigin    = "anonymous"
)

// Action is one command for the render target.
type Action interface {
	Type() ActionType
}

// Expression selects a facial expression by catalog label (Name) or by index.
// Name wins when both are set.
type Expression struct {
	Index *int
	Name  *string
}

func (Expression) Type() ActionType { return ActionExpression }

// Motion plays entry Index of motion group Group.
type Motion struct {
	Group    string
	Index    int
	Priority int
}

func (Motion) Type() ActionType { return ActionMotion }

// ExpressionRef names an expression either by index or by label.
type ExpressionRef struct {
	Index *int
	Name  string
}

func (r *ExpressionRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Name)
	}
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("expression must be a number or a string: %w", err)
	}
	r.Index = &i
	return nil
}

// Audio plays a clip and optionally drives an expression while speaking.
type Audio struct {
	Src             string
	Volume          float64
	Expression      *ExpressionRef
	ResetExpression bool
	CrossOrigin     string
	WaitEnd         bool
}

func (Audio) Type() ActionType { return ActionAudio }

type StopAll struct{}

func (StopAll) Type() ActionType { return ActionStopAll }

type ClearQueue struct{}

func (ClearQueue) Type() ActionType { return ActionClearQueue }

type Ping struct{}

func (Ping) Type() ActionType { return ActionPing }

// Sequence is an ordered group of actions executed as one queue entry.
type Sequence struct {
	Items []Action
}

func (Sequence) Type() ActionType { return ActionSequence }

// DecodeAction decodes an action payload by its "type" field and applies the
// per-kind defaults. Items of a sequence with an unknown type are skipped.
func DecodeAction(data []byte) (Action, error) {
	t, err := actionType(data)
	if err != nil {
		return nil, err
	}

	switch t {
	case ActionExpression:
		var w struct {
			Index *int    `json:"index"`
			Name  *string `json:"name"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return Expression{Index: w.Index, Name: w.Name}, nil

	case ActionMotion:
		var w struct {
			Group    string `json:"group"`
			Index    *int   `json:"index"`
			Priority *int   `json:"priority"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		m := Motion{Group: w.Group, Priority: DefaultMotionPriority}
		if w.Index != nil {
			m.Index = *w.Index
		}
		if w.Priority != nil {
			m.Priority = min(max(*w.Priority, MinMotionPriority), MaxMotionPriority)
		}
		return m, nil

	case ActionAudio:
		var w struct {
			Src             string         `json:"src"`
			Volume          *float64       `json:"volume"`
			Expression      *ExpressionRef `json:"expression"`
			ResetExpression *bool          `json:"resetExpression"`
			CrossOrigin     *string        `json:"crossOrigin"`
			WaitEnd         *bool          `json:"waitEnd"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		a := Audio{
			Src:             w.Src,
			Volume:          DefaultVolume,
			Expression:      w.Expression,
			ResetExpression: true,
			CrossOrigin:     DefaultCrossOrigin,
			WaitEnd:         true,
		}
		if w.Volume != nil {
			a.Volume = *w.Volume
		}
		if w.ResetExpression != nil {
			a.ResetExpression = *w.ResetExpression
		}
		if w.CrossOrigin != nil {
			a.CrossOrigin = *w.CrossOrigin
		}
		if w.WaitEnd != nil {
			a.WaitEnd = *w.WaitEnd
		}
		return a, nil

	case ActionStopAll:
		return StopAll{}, nil
	case ActionClearQueue:
		return ClearQueue{}, nil
	case ActionPing:
		return Ping{}, nil

	case ActionSequence:
		var w struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		seq := Sequence{Items: make([]Action, 0, len(w.Items))}
		for i, raw := range w.Items {
			item, err := DecodeAction(raw)
			if errors.Is(err, ErrUnknownAction) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("decode %s item %d: %w", t, i, err)
			}
			seq.Items = append(seq.Items, item)
		}
		return seq, nil

	case ActionViewSet, ActionViewPanBy, ActionViewZoomBy, ActionViewCenter, ActionViewFit:
		return decodeView(t, data)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, t)
}

// IsAction reports whether data is a JSON object carrying a string "type" field.
func IsAction(data []byte) bool {
	_, err := actionType(data)
	return err == nil
}

func actionType(data []byte) (ActionType, error) {
	var head struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotAction, err)
	}
	if len(head.Type) == 0 || head.Type[0] != '"' {
		return "", ErrNotAction
	}
	var t string
	if err := json.Unmarshal(head.Type, &t); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotAction, err)
	}
	return ActionType(t), nil
}
