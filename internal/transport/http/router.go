package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/admin"
	"warden/internal/platform/metrics"
	ratelimitmw "warden/internal/ratelimit/middleware"
	"warden/pkg/platform/httputil"
	authmw "warden/pkg/platform/middleware/auth"
	metadata "warden/pkg/platform/middleware/metadata"
	request "warden/pkg/platform/middleware/request"
	"warden/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router mounts.
type Deps struct {
	Admin          *admin.Handler
	Validator      authmw.JWTValidator
	Limiter        *ratelimitmw.Middleware
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Checks         map[string]HealthCheck
	AllowedOrigins []string
}

// NewRouter wires the public health and metrics endpoints and the
// authenticated admin API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(middleware.RealIP)
	r.Use(request.Logger(d.Logger, func(route string, status int, elapsed time.Duration) {
		d.Metrics.ObserveHTTPRequest(route, statusClass(status), elapsed)
	}))
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", healthHandler(d.Checks))
	r.Handle("/metrics", promhttp.Handler())

	if d.Admin != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(cors.Handler(cors.Options{
				AllowedOrigins: d.AllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
				MaxAge:         300,
			}))
			if d.Limiter != nil {
				ar.Use(d.Limiter.RateLimit)
			}
			ar.Use(middleware.Timeout(30 * time.Second))
			ar.Use(authmw.RequireAdmin(d.Validator, d.Logger))
			d.Admin.Register(ar)
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
