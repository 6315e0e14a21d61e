package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ofactrack/pkg/httputil"
)

// HealthChecker reports readiness of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewRouter assembles the full API surface: read endpoints, the guarded run
// trigger, the Prometheus scrape endpoint, and health probes.
func NewRouter(h *Handler, auth *AdminAuth, checks map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	h.Register(r)
	h.RegisterAdmin(r, auth)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := make(map[string]string, len(checks)+1)
		code := http.StatusOK
		for name, check := range checks {
			if err := check.Health(req.Context()); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
			} else {
				status[name] = "ok"
			}
		}
		status["status"] = "ok"
		if code != http.StatusOK {
			status["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, status)
	})

	return r
}
