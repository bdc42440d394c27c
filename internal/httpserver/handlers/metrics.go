package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/aggregate"
	"github.com/MrSnakeDoc/linkmetrics/internal/domain"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
)

type metricsResponse struct {
	OwnerID  string                            `json:"owner_id"`
	Metric   string                            `json:"metric"`
	Services map[string]aggregate.MetricResult `json:"services"`
	Failed   int                               `json:"failed"`
}

// Metrics returns one metric for every service linked to the user.
// Failed services are reported inline and do not fail the request.
func Metrics(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "userID")
		metric := r.URL.Query().Get("name")
		if metric == "" {
			metric = domain.MetricFollowers
		}

		results, err := d.Aggregator.FetchUserMetrics(r.Context(), ownerID, metric)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		failed := 0
		for _, res := range results {
			if res.Failed() {
				failed++
			}
		}
		if failed > 0 {
			d.Logger.Debug("metrics served with failed services",
				logger.String("owner_id", ownerID),
				logger.Int("failed", failed))
		}

		writeJSON(w, http.StatusOK, metricsResponse{
			OwnerID:  ownerID,
			Metric:   metric,
			Services: results,
			Failed:   failed,
		})
	}
}
