package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/linkmetrics/internal/httpserver/mw"
)

func init() { Register(registerReload) }

func registerReload(r chi.Router, d deps.Deps) {
	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
	ops.Post("/refresh", handlers.Reload(d))
	ops.Get("/refresh/status", handlers.RefreshStatus(d))
}
