package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Version       string    `json:"version,omitempty"`
	Commit        string    `json:"commit,omitempty"`
	BuildDate     string    `json:"build_date,omitempty"`
	GoVersion     string    `json:"go_version,omitempty"`
}

// Healthz is the liveness probe. It never touches the store or the cache tier;
// see Readyz and Infra for those.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			StartedAt:     d.StartTime.UTC(),
			UptimeSeconds: d.Now().Sub(d.StartTime).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		})
	}
}
