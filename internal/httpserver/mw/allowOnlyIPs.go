package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/linkmetrics/internal/logger"
	"github.com/MrSnakeDoc/linkmetrics/internal/utils"
)

// AllowOnlyCIDRS guards the operator endpoints with a
// list of IPs and CIDRs. An empty list disables the check.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("operator CIDR list empty, endpoints are open")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("operator CIDR filter enabled",
		logger.Strings("allowed", allowed),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("operator request rejected",
					logger.String("client_ip", ip),
					logger.String("remote_addr", r.RemoteAddr),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
