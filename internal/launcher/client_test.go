package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lanya16/pai/internal/apperrors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func TestListFrameworksFiltersByUser(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Frameworks" {
			t.Errorf("path = %q, want /v1/Frameworks", r.URL.Path)
		}
		if got := r.URL.Query().Get("UserName"); got != "alice" {
			t.Errorf("UserName = %q, want alice", got)
		}
		json.NewEncoder(w).Encode(ListResponse{
			SummarizedFrameworkInfos: []SummarizedFrameworkInfo{
				{FrameworkName: "alice~mnist", UserName: "alice", FrameworkState: StateApplicationRunning},
			},
		})
	})

	infos, err := client.ListFrameworks(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListFrameworks() error: %v", err)
	}
	if len(infos) != 1 || infos[0].FrameworkName != "alice~mnist" {
		t.Errorf("ListFrameworks() = %+v", infos)
	}
}

func TestGetFrameworkNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "framework does not exist", http.StatusNotFound)
	})

	_, err := client.GetFramework(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("error = %v, want apperrors.ErrNotFound", err)
	}
}

func TestNon2xxBecomesUnknownWithStatusAndBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue quota exceeded", http.StatusServiceUnavailable)
	})

	err := client.PutFramework(context.Background(), "job", []byte(`{}`))
	if !errors.Is(err, apperrors.ErrUnknown) {
		t.Fatalf("error = %v, want apperrors.ErrUnknown", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatal("error is not *apperrors.Error")
	}
	if appErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", appErr.Status)
	}
	if appErr.Body != "queue quota exceeded\n" {
		t.Errorf("Body = %q, want upstream body", appErr.Body)
	}
}

func TestPutFrameworkSendsDescriptor(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotPath, gotMethod, gotContentType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})

	descriptor := []byte(`{"version":"2.0.0"}`)
	if err := client.PutFramework(context.Background(), "alice~mnist", descriptor); err != nil {
		t.Fatalf("PutFramework() error: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/v1/Frameworks/alice~mnist" {
		t.Errorf("path = %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if string(gotBody) != string(descriptor) {
		t.Errorf("body = %q, want %q", gotBody, descriptor)
	}
}

func TestPutExecutionType(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	})

	if err := client.PutExecutionType(context.Background(), "job1", ExecutionStop); err != nil {
		t.Fatalf("PutExecutionType() error: %v", err)
	}
	if gotPath != "/v1/Frameworks/job1/ExecutionType" {
		t.Errorf("path = %q", gotPath)
	}
	var payload map[string]string
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("body %q is not JSON: %v", gotBody, err)
	}
	if payload["executionType"] != "STOP" {
		t.Errorf("executionType = %q, want STOP", payload["executionType"])
	}
}

func TestDeleteFramework(t *testing.T) {
	t.Parallel()

	var gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusAccepted)
	})

	if err := client.DeleteFramework(context.Background(), "job1"); err != nil {
		t.Fatalf("DeleteFramework() error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
}

func TestGetFrameworkParsesStatusDocument(t *testing.T) {
	t.Parallel()

	exitCode := 137
	doc := FrameworkInfo{Name: "job1"}
	doc.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.User.Name = "bob"
	doc.AggregatedFrameworkStatus.FrameworkStatus = FrameworkStatus{
		FrameworkState: StateFrameworkCompleted,
		FrameworkRetryPolicyState: RetryPolicyState{
			TransientNormalRetriedCount: 2,
			NonTransientRetriedCount:    1,
		},
	}
	doc.AggregatedFrameworkStatus.AggregatedApplicationStatus = &AggregatedApplicationStatus{
		ApplicationStatus: ApplicationStatus{
			ApplicationExitCode:        &exitCode,
			ApplicationExitDiagnostics: "Container killed",
		},
		AggregatedTaskRoleStatuses: map[string]TaskRoleStatus{
			"worker": {TaskStatuses: TaskStatuses{TaskStatusArray: []TaskStatus{
				{TaskIndex: 0, TaskState: TaskStateCompleted, ContainerExitCode: &exitCode},
			}}},
		},
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(doc)
	})

	got, err := client.GetFramework(context.Background(), "job1")
	if err != nil {
		t.Fatalf("GetFramework() error: %v", err)
	}
	if got.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.User.Name != "bob" {
		t.Error("owner not parsed")
	}
	app := got.AggregatedFrameworkStatus.AggregatedApplicationStatus
	if app == nil || app.ApplicationStatus.ApplicationExitCode == nil || *app.ApplicationStatus.ApplicationExitCode != 137 {
		t.Errorf("exit code not parsed: %+v", app)
	}
	if len(app.AggregatedTaskRoleStatuses["worker"].TaskStatuses.TaskStatusArray) != 1 {
		t.Error("task statuses not parsed")
	}
}
