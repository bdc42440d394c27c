package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 1})(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/users/u1/metrics", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 0 && rec.Header().Get("X-RateLimit-Remaining") != "1" {
			t.Errorf("X-RateLimit-Remaining = %q, want 1", rec.Header().Get("X-RateLimit-Remaining"))
		}
		if i == 2 && rec.Header().Get("Retry-After") == "" {
			t.Error("throttled response without Retry-After")
		}
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}

	// Another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		remote  string
		want    int
	}{
		{name: "passthrough when empty", remote: "8.8.8.8:1", want: http.StatusOK},
		{name: "inside range", allowed: []string{"10.0.0.0/8"}, remote: "10.2.3.4:1", want: http.StatusOK},
		{name: "outside range", allowed: []string{"10.0.0.0/8"}, remote: "8.8.8.8:1", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := AllowOnlyCIDRS(tt.allowed, false, logger.Nop())(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/infra", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"metrics.example.com", "*.internal.example.com"}, logger.Nop())(okHandler)

	tests := []struct {
		host string
		want int
	}{
		{"metrics.example.com", http.StatusOK},
		{"Metrics.Example.com:8080", http.StatusOK},
		{"api.internal.example.com", http.StatusOK},
		{"evil.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/refresh", nil)
		req.Host = tt.host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("Host %q status = %d, want %d", tt.host, rec.Code, tt.want)
		}
	}
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"metrics.example.com", "metrics.example.com", true},
		{"api.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "metrics.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}
