package target

import (
	"math"

	"github.com/pscheid92/actionrelay/internal/domain"
)

const (
	minScale = 0.01
	// fitFactor scales a 1000px reference model into the viewport.
	fitFactor = 0.15
	// fitBaseline positions the anchor at 80% height, so the model stands on the lower edge.
	fitBaseline = 0.8
)

// Viewport is the renderer size in pixels.
type Viewport struct {
	Width, Height float64
}

// Transform is the model's placement in the viewport.
type Transform struct {
	X, Y             float64
	Scale            float64
	Rotation         float64
	AnchorX, AnchorY float64
}

// InitialTransform is the placement right after model load.
func InitialTransform(vp Viewport) Transform {
	return fit(vp, domain.FitContain)
}

// Apply returns t with change applied.
func (t Transform) Apply(change domain.ViewChange, vp Viewport) Transform {
	switch c := change.(type) {
	case domain.ViewSet:
		if c.AnchorX != nil {
			t.AnchorX = *c.AnchorX
		}
		if c.AnchorY != nil {
			t.AnchorY = *c.AnchorY
		}
		if c.X != nil {
			t.X = *c.X
		}
		if c.Y != nil {
			t.Y = *c.Y
		}
		if c.Scale != nil {
			t.Scale = *c.Scale
		}
		if c.Rotation != nil {
			t.Rotation = *c.Rotation
		}
	case domain.ViewPanBy:
		t.X += c.DX
		t.Y += c.DY
	case domain.ViewZoomBy:
		t.Scale = math.Max(minScale, t.Scale*c.Factor)
	case domain.ViewCenter:
		t.AnchorX, t.AnchorY = 0.5, 0.5
		t.X, t.Y = vp.Width*0.5, vp.Height*0.5
	case domain.ViewFit:
		fitted := fit(vp, c.Mode)
		fitted.Rotation = t.Rotation
		return fitted
	}
	return t
}

func fit(vp Viewport, mode domain.FitMode) Transform {
	w, h := vp.Width/1000, vp.Height/1000

	var s float64
	switch mode {
	case domain.FitWidth:
		s = w
	case domain.FitHeight:
		s = h
	case domain.FitCover:
		s = math.Max(w, h)
	default:
		s = math.Min(w, h)
	}

	return Transform{
		X:       vp.Width * 0.5,
		Y:       vp.Height * fitBaseline,
		Scale:   s * fitFactor,
		AnchorX: 0.5,
		AnchorY: 0.5,
	}
}
