package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.RateLimitBurst,
			RefillPerIPPerMin: d.RateLimitPerMinute,
			MaxEntries:        d.RateLimitEntries,
			TrustProxy:        d.TrustProxy,
		}))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", handlers.User(d))
			r.Get("/metrics", handlers.Metrics(d))
			r.Get("/services", handlers.Services(d))
			r.Get("/services/{service}", handlers.Service(d))
			r.Post("/services/{service}/refresh", handlers.RefreshService(d))
		})

		r.Get("/channels/{channelID}", handlers.Channel(d))
	})
}
