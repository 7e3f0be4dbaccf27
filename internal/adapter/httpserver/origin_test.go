package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	allowed := []string{"https://stream.example.com/overlay", " https://deck.example.com:8443 "}

	tests := []struct {
		name          string
		allowed       []string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"no allowlist accepts anything", nil, "https://evil.com", false, true},
		{"empty origin", allowed, "", false, true},
		{"listed origin", allowed, "https://stream.example.com", false, true},
		{"listed origin with port", allowed, "https://deck.example.com:8443", false, true},
		{"case-insensitive", allowed, "HTTPS://Stream.Example.com", false, true},

		{"different host", allowed, "https://evil.com", false, false},
		{"different port", allowed, "https://stream.example.com:9090", false, false},
		{"http instead of https", allowed, "http://stream.example.com", false, false},

		{"localhost dev", allowed, "http://localhost:5173", true, true},
		{"127.0.0.1 dev", allowed, "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", allowed, "http://localhost:5173", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newCheckOrigin(tt.allowed, tt.isDevelopment)
			r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checker(r))
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://example.com/path?q=1", "https://example.com"},
		{"http://localhost:8080", "http://localhost:8080"},
		{"", ""},
		{"not-a-url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeOrigin(tt.rawURL))
		})
	}
}
