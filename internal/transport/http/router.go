// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; business rules stay in the services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veristamp/pkg/platform/httputil"
	"veristamp/pkg/platform/middleware/auth"
	"veristamp/pkg/platform/middleware/requestid"
)

// HealthCheck probes one backing dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter wires all endpoints. Issuance and registration require an issuer
// bearer token; verification and reads are public.
func NewRouter(h *Handler, validator auth.TokenValidator, logger *slog.Logger, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(logger))

	r.Get("/healthz", healthz(logger, checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireIssuer(validator, logger))
		r.Post("/documents", h.handleIssue)
		r.Post("/documents/{hash}/register", h.handleRegister)
	})

	r.Post("/verify", h.handleVerify)
	r.Get("/documents/{hash}", h.handleGet)

	return r
}

// healthz reports ok only when every registered dependency responds. A failed
// probe degrades the response to 503 with the dependency named.
func healthz(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := c.Check(ctx)
			cancel()
			if err != nil {
				logger.WarnContext(r.Context(), "health check failed",
					"dependency", c.Name, "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable,
					map[string]string{"status": "degraded", "dependency": c.Name})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// requestLogger logs one line per request with the correlation ID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
