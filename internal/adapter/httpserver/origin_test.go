package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		dev    bool
		want   bool
	}{
		{"no origin header", "", false, true},
		{"same host", "https://charades.example", false, true},
		{"allowed origin", "https://play.example", false, true},
		{"foreign origin", "https://evil.example", false, false},
		{"localhost in production", "http://localhost:3000", false, false},
		{"localhost in development", "http://localhost:3000", true, true},
		{"loopback in development", "http://127.0.0.1:5173", true, true},
		{"garbage origin", "://", true, false},
	}

	check := func(dev bool) func(*http.Request) bool {
		return NewCheckOrigin([]string{"https://play.example"}, dev)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://charades.example/ws/room1", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(tt.dev)(req))
		})
	}
}
