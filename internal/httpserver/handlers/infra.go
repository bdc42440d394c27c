package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/linkmetrics/internal/cache"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool         `json:"ok"`
	Mode       string       `json:"mode,omitempty"`
	Impact     string       `json:"impact,omitempty"`
	Error      string       `json:"error,omitempty"`
	Tracked    *int         `json:"tracked,omitempty"`
	Failed     *int         `json:"failed,omitempty"`
	LastReload string       `json:"last_run,omitempty"`
	Stats      *cache.Stats `json:"stats,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"store":   checkStore(ctx, d),
			"cache":   checkCache(ctx, d),
			"refresh": refreshStatus(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	// The store is the source of truth, nothing works without it
	if store, exists := components["store"]; exists && !store.OK {
		return "critical"
	}

	for _, name := range []string{"cache", "refresh"} {
		if c, exists := components[name]; exists && !c.OK {
			return "degraded"
		}
	}

	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "sqlite"}
}

func checkCache(ctx context.Context, d deps.Deps) componentStatus {
	var stats *cache.Stats
	if d.CacheStats != nil {
		s := d.CacheStats()
		stats = &s
	}

	if d.SharedCache == nil {
		return componentStatus{
			OK:     true,
			Mode:   "memory",
			Impact: "cache-not-shared",
			Stats:  stats,
		}
	}

	if err := d.SharedCache.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "redis",
			Impact: "reads-fall-through-to-store",
			Error:  err.Error(),
			Stats:  stats,
		}
	}

	return componentStatus{
		OK:    true,
		Mode:  "redis",
		Stats: stats,
	}
}

func refreshStatus(d deps.Deps) componentStatus {
	if d.MemoryIndex == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}

	tracked := d.MemoryIndex.Count()
	failed := d.MemoryIndex.FailedCount()
	lastRun := "never"
	if t := d.MemoryIndex.GetLastReload(); !t.IsZero() {
		lastRun = t.UTC().Format(time.RFC3339)
	}

	return componentStatus{
		OK:         failed == 0,
		Tracked:    &tracked,
		Failed:     &failed,
		LastReload: lastRun,
	}
}
