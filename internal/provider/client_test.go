package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
)

func TestClientGetJSON(t *testing.T) {
	ps := newProviderServer(t, map[string]string{
		"/ok":     `{"value":3}`,
		"/broken": "500",
		"/bad":    `{"value":`,
	})
	c := ps.client()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "ok", path: "/ok"},
		{name: "not found", path: "/missing", wantErr: domain.ErrNotFound},
		{name: "server error", path: "/broken", wantErr: domain.ErrProviderUnavailable},
		{name: "malformed body", path: "/bad", wantErr: domain.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Value int `json:"value"`
			}
			err := c.GetJSON(context.Background(), tt.path, nil, "secret", &out)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("GetJSON() error = %v", err)
				}
				if out.Value != 3 {
					t.Errorf("Value = %d, want 3", out.Value)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetJSON() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	ps := newProviderServer(t, map[string]string{"/ok": `{}`})

	var out struct{}
	if err := ps.client().GetJSON(context.Background(), "/ok", nil, "secret", &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got := <-ps.tokens; got != "secret" {
		t.Errorf("token = %q, want %q", got, "secret")
	}
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", testClientConfig)

	var out struct{}
	err := c.GetJSON(context.Background(), "/x", nil, "", &out)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("GetJSON() error = %v, want ErrProviderUnavailable", err)
	}
}
