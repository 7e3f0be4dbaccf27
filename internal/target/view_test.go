package target

import (
	"testing"

	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

var hd = Viewport{Width: 1920, Height: 1080}

func TestInitialTransform(t *testing.T) {
	got := InitialTransform(hd)

	assert.Equal(t, 960.0, got.X)
	assert.Equal(t, 864.0, got.Y)
	assert.InDelta(t, 1.08*0.15, got.Scale, 1e-9)
	assert.Equal(t, 0.5, got.AnchorX)
	assert.Equal(t, 0.5, got.AnchorY)
}

func TestApply_Fit(t *testing.T) {
	tests := []struct {
		mode domain.FitMode
		want float64
	}{
		{domain.FitContain, 1.08 * 0.15},
		{domain.FitCover, 1.92 * 0.15},
		{domain.FitWidth, 1.92 * 0.15},
		{domain.FitHeight, 1.08 * 0.15},
	}

	start := Transform{X: 1, Y: 2, Scale: 9, Rotation: 0.3}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got := start.Apply(domain.ViewFit{Mode: tt.mode}, hd)
			assert.InDelta(t, tt.want, got.Scale, 1e-9)
			assert.Equal(t, 960.0, got.X)
			assert.Equal(t, 864.0, got.Y)
			assert.Equal(t, 0.3, got.Rotation, "fit keeps rotation")
		})
	}
}

func TestApply_SetPartial(t *testing.T) {
	start := Transform{X: 10, Y: 20, Scale: 0.5, Rotation: 0, AnchorX: 0.5, AnchorY: 0.5}

	got := start.Apply(domain.ViewSet{Y: f(99), Rotation: f(1.5), AnchorX: f(0)}, hd)

	assert.Equal(t, Transform{X: 10, Y: 99, Scale: 0.5, Rotation: 1.5, AnchorX: 0, AnchorY: 0.5}, got)
}

func TestApply_PanZoomCenter(t *testing.T) {
	start := Transform{X: 100, Y: 100, Scale: 0.2, AnchorX: 0, AnchorY: 1}

	panned := start.Apply(domain.ViewPanBy{DX: 15, DY: -5}, hd)
	assert.Equal(t, 115.0, panned.X)
	assert.Equal(t, 95.0, panned.Y)

	zoomed := start.Apply(domain.ViewZoomBy{Factor: 1.5}, hd)
	assert.InDelta(t, 0.3, zoomed.Scale, 1e-9)

	tiny := start.Apply(domain.ViewZoomBy{Factor: 0}, hd)
	assert.Equal(t, minScale, tiny.Scale, "zoom never goes below the floor")

	centered := start.Apply(domain.ViewCenter{}, hd)
	assert.Equal(t, Transform{X: 960, Y: 540, Scale: 0.2, AnchorX: 0.5, AnchorY: 0.5}, centered)
}
