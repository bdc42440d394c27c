package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready once the durable store answers a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if d.Store == nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: "store not initialized"})
			return
		}
		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.Warn("readiness check failed", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
