package api

import (
	"net/http"

	"github.com/lanya16/pai/internal/health"
	"github.com/lanya16/pai/internal/job"
	"github.com/lanya16/pai/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	JobService    *job.Service
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
	AdminUsers    []string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.JobService, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Job endpoints - auth and caller identity required
	protect := func(h http.HandlerFunc) http.Handler {
		return AuthMiddleware(cfg.APIKey)(IdentityMiddleware(cfg.AdminUsers)(h))
	}
	mux.Handle("GET /api/v1/jobs", protect(handler.ListJobs))
	mux.Handle("GET /api/v1/jobs/{jobName}", protect(handler.GetJob))
	mux.Handle("PUT /api/v1/jobs/{jobName}", protect(handler.SubmitJob))
	mux.Handle("DELETE /api/v1/jobs/{jobName}", protect(handler.DeleteJob))
	mux.Handle("PUT /api/v1/jobs/{jobName}/executionType", protect(handler.SetExecutionType))
	mux.Handle("GET /api/v1/jobs/{jobName}/config", protect(handler.GetJobConfig))
	mux.Handle("GET /api/v1/jobs/{jobName}/ssh", protect(handler.GetJobSSHInfo))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
