package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/mw"
)

func init() { Register(registerProbes) }

func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ops.Get("/readyz", handlers.Readyz(d))
	ops.Get("/infra", handlers.Infra(d))
}
