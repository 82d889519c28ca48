package apperrors

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Validation("jobName", "job name is required"), ErrValidation},
		{"not found", NotFound("job", "demo"), ErrNotFound},
		{"forbidden", Forbidden("job", "demo", "user alice may not delete job owned by bob"), ErrForbidden},
		{"conflict", Conflict("job", "demo", "job already exists"), ErrConflict},
		{"parse", Parse("diagnostics.runtime", errors.New("bad yaml")), ErrParse},
		{"provisioning", Provisioning("hdfs.mkdirs", errors.New("connection refused")), ErrProvisioning},
		{"unknown", Unknown("launcher.getFramework", 500, "internal"), ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestUnknownCarriesUpstreamDetail(t *testing.T) {
	t.Parallel()

	err := Unknown("launcher.putFramework", 503, "queue full")

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("errors.As failed for %v", err)
	}
	if appErr.Status != 503 {
		t.Errorf("Status = %d, want 503", appErr.Status)
	}
	if appErr.Body != "queue full" {
		t.Errorf("Body = %q, want %q", appErr.Body, "queue full")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation maps to 400", Validation("f", "m"), http.StatusBadRequest},
		{"not found maps to 404", NotFound("job", "x"), http.StatusNotFound},
		{"forbidden maps to 403", Forbidden("job", "x", "no"), http.StatusForbidden},
		{"conflict maps to 409", Conflict("job", "x", "dup"), http.StatusConflict},
		{"unknown maps to 502", Unknown("op", 500, "boom"), http.StatusBadGateway},
		{"plain error maps to 500", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped not found maps to 404", errors.Join(errors.New("ctx"), NotFound("job", "x")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
