package domain

import (
	"encoding/json"
	"fmt"
)

// FitMode selects how view.fit scales the model into the viewport.
type FitMode string

const (
	FitContain FitMode = "contain"
	FitCover   FitMode = "cover"
	FitWidth   FitMode = "width"
	FitHeight  FitMode = "height"
)

// ViewChange is a camera/transform mutation on the render target.
type ViewChange interface {
	Action
	viewChange()
}

// ViewSet assigns the transform fields that are present.
type ViewSet struct {
	X, Y             *float64
	Scale            *float64
	Rotation         *float64
	AnchorX, AnchorY *float64
}

func (ViewSet) Type() ActionType { return ActionViewSet }
func (ViewSet) viewChange()      {}

type ViewPanBy struct {
	DX, DY float64
}

func (ViewPanBy) Type() ActionType { return ActionViewPanBy }
func (ViewPanBy) viewChange()      {}

// ViewZoomBy multiplies the current scale by Factor.
type ViewZoomBy struct {
	Factor float64
}

func (ViewZoomBy) Type() ActionType { return ActionViewZoomBy }
func (ViewZoomBy) viewChange()      {}

type ViewCenter struct{}

func (ViewCenter) Type() ActionType { return ActionViewCenter }
func (ViewCenter) viewChange()      {}

type ViewFit struct {
	Mode FitMode
}

func (ViewFit) Type() ActionType { return ActionViewFit }
func (ViewFit) viewChange()      {}

func decodeView(t ActionType, data []byte) (Action, error) {
	switch t {
	case ActionViewSet:
		var w struct {
			X        *float64 `json:"x"`
			Y        *float64 `json:"y"`
			Scale    *float64 `json:"scale"`
			Rotation *float64 `json:"rotation"`
			AnchorX  *float64 `json:"anchorX"`
			AnchorY  *float64 `json:"anchorY"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ViewSet{X: w.X, Y: w.Y, Scale: w.Scale, Rotation: w.Rotation, AnchorX: w.AnchorX, AnchorY: w.AnchorY}, nil

	case ActionViewPanBy:
		var w struct {
			DX float64 `json:"dx"`
			DY float64 `json:"dy"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ViewPanBy{DX: w.DX, DY: w.DY}, nil

	case ActionViewZoomBy:
		var w struct {
			Factor *float64 `json:"factor"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		z := ViewZoomBy{Factor: 1}
		if w.Factor != nil {
			z.Factor = *w.Factor
		}
		return z, nil

	case ActionViewCenter:
		return ViewCenter{}, nil

	case ActionViewFit:
		var w struct {
			Mode FitMode `json:"mode"`
		}
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		switch w.Mode {
		case FitCover, FitWidth, FitHeight:
		default:
			w.Mode = FitContain
		}
		return ViewFit{Mode: w.Mode}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, t)
}
