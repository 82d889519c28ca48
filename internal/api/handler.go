// Package api provides the HTTP API handlers and routing for the rest-server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lanya16/pai/internal/apperrors"
	"github.com/lanya16/pai/internal/health"
	"github.com/lanya16/pai/internal/job"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the jobs API
type Handler struct {
	svc    *job.Service
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(svc *job.Service, healthChecker *health.Checker) *Handler {
	return &Handler{
		svc:    svc,
		health: healthChecker,
	}
}

// ListJobs handles GET /api/v1/jobs
// Query params: username (optional filter by owning user)
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summaries)
}

// GetJob handles GET /api/v1/jobs/{jobName}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), r.PathValue("jobName"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, detail)
}

// SubmitJob handles PUT /api/v1/jobs/{jobName}
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var spec job.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if spec.JobName == "" {
		spec.JobName = r.PathValue("jobName")
	} else if spec.FullName() != r.PathValue("jobName") {
		h.writeError(w, http.StatusBadRequest, "Job name in path and body do not match")
		return
	}

	if err := h.svc.Submit(r.Context(), CallerFrom(r.Context()), &spec); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"name": spec.FullName()})
}

// DeleteJob handles DELETE /api/v1/jobs/{jobName}
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), CallerFrom(r.Context()), r.PathValue("jobName")); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// SetExecutionType handles PUT /api/v1/jobs/{jobName}/executionType
func (h *Handler) SetExecutionType(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req struct {
		ExecutionType string `json:"executionType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err := h.svc.SetExecutionType(r.Context(), CallerFrom(r.Context()), r.PathValue("jobName"), req.ExecutionType)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetJobConfig handles GET /api/v1/jobs/{jobName}/config
func (h *Handler) GetJobConfig(w http.ResponseWriter, r *http.Request) {
	content, format, err := h.svc.GetConfig(r.Context(), r.PathValue("jobName"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	contentType := "text/vnd.yaml"
	if format == "json" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		slog.Error("Failed to write job config response", "error", err)
	}
}

// GetJobSSHInfo handles GET /api/v1/jobs/{jobName}/ssh
func (h *Handler) GetJobSSHInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetSSHInfo(r.Context(), r.PathValue("jobName"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if dependencies (launcher, store) are unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
