package hdfs

import (
	"context"
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

func TestMakeDirSendsOwnerAndPermission(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotQuery map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"boolean":true}`))
	})

	err := client.MakeDir(context.Background(), "/Container/alice/job1", "alice", "777")
	if err != nil {
		t.Fatalf("MakeDir() error: %v", err)
	}
	if gotPath != "/webhdfs/v1/Container/alice/job1" {
		t.Errorf("path = %q", gotPath)
	}
	if got := gotQuery["op"]; len(got) != 1 || got[0] != "MKDIRS" {
		t.Errorf("op = %v, want MKDIRS", got)
	}
	if got := gotQuery["permission"]; len(got) != 1 || got[0] != "777" {
		t.Errorf("permission = %v, want 777", got)
	}
	if got := gotQuery["user.name"]; len(got) != 1 || got[0] != "alice" {
		t.Errorf("user.name = %v, want alice", got)
	}
}

func TestWriteFileSendsContentAndOverwrite(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotOverwrite string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotOverwrite = r.URL.Query().Get("overwrite")
		w.WriteHeader(http.StatusCreated)
	})

	err := client.WriteFile(context.Background(), "/Container/alice/job1/JobConfig.yaml",
		[]byte("jobName: job1\n"), "alice", "644", true)
	if err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if string(gotBody) != "jobName: job1\n" {
		t.Errorf("body = %q", gotBody)
	}
	if gotOverwrite != "true" {
		t.Errorf("overwrite = %q, want true", gotOverwrite)
	}
}

func TestReadFileNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file does not exist", http.StatusNotFound)
	})

	_, err := client.ReadFile(context.Background(), "/Container/alice/job1/JobConfig.yaml")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("error = %v, want apperrors.ErrNotFound", err)
	}
}

func TestReadFileReturnsContent(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("op"); got != "OPEN" {
			t.Errorf("op = %q, want OPEN", got)
		}
		w.Write([]byte("content"))
	})

	got, err := client.ReadFile(context.Background(), "/f")
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(got) != "content" {
		t.Errorf("content = %q", got)
	}
}

func TestListParsesEntries(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"FileStatuses":{"FileStatus":[
			{"pathSuffix":"job1.pub","type":"FILE","length":381},
			{"pathSuffix":"keyFiles","type":"DIRECTORY","length":0}
		]}}`))
	})

	entries, err := client.List(context.Background(), "/Container/alice/job1/ssh")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].IsDir() {
		t.Error("entries[0].IsDir() = true, want false")
	}
	if !entries[1].IsDir() {
		t.Error("entries[1].IsDir() = false, want true")
	}
}

func TestNon2xxBecomesUnknown(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namenode in safe mode", http.StatusForbidden)
	})

	err := client.MakeDir(context.Background(), "/Output", "root", "777")
	if !errors.Is(err, apperrors.ErrUnknown) {
		t.Fatalf("error = %v, want apperrors.ErrUnknown", err)
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", appErr.Status)
	}
}
