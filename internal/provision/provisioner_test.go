package provision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lanya16/pai/internal/apperrors"
	"github.com/lanya16/pai/internal/job"
	"github.com/lanya16/pai/internal/sshkey"
)

// memStore records store writes; sub-tasks run concurrently, so it locks.
type memStore struct {
	mu        sync.Mutex
	dirs      map[string]string // path -> permission
	files     map[string][]byte
	failDirs  string // fail MakeDir on paths containing this
	failFiles string // fail WriteFile on paths containing this
}

func newMemStore() *memStore {
	return &memStore{
		dirs:  make(map[string]string),
		files: make(map[string][]byte),
	}
}

func (s *memStore) MakeDir(ctx context.Context, path, owner, permission string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDirs != "" && strings.Contains(path, s.failDirs) {
		return errors.New("mkdir failed")
	}
	s.dirs[path] = permission
	return nil
}

func (s *memStore) WriteFile(ctx context.Context, path string, content []byte, owner, permission string, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFiles != "" && strings.Contains(path, s.failFiles) {
		return errors.New("write failed")
	}
	s.files[path] = content
	return nil
}

func testKeygen(bits int) (*sshkey.KeyPair, error) {
	return &sshkey.KeyPair{Public: []byte("pub"), Private: []byte("priv")}, nil
}

func failingKeygen(bits int) (*sshkey.KeyPair, error) {
	return nil, errors.New("no entropy")
}

func twoRoleSpec() *job.Spec {
	return &job.Spec{
		JobName:  "job1",
		UserName: "alice",
		TaskRoles: []job.TaskRoleSpec{
			{Name: "ps", TaskNumber: 1, CPUNumber: 1, MemoryMB: 1024, Command: "python ps.py"},
			{Name: "worker", TaskNumber: 2, CPUNumber: 1, MemoryMB: 1024, Command: "python worker.py"},
		},
	}
}

func twoRoleScripts() []job.RoleScripts {
	return []job.RoleScripts{
		{RoleName: "ps", Native: []byte("#!ps"), UserImage: []byte("#!ps-img")},
		{RoleName: "worker", Native: []byte("#!worker"), UserImage: []byte("#!worker-img")},
	}
}

func TestProvisionCreatesFullLayout(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	p := New(store, testKeygen, Config{}, nil)

	err := p.Provision(context.Background(), twoRoleSpec(), []byte(`{"version":"2.0.0"}`), twoRoleScripts())
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	for _, dir := range []string{
		"/Output",
		"/Container",
		"/Output/alice/job1",
		"/Container/alice/job1/log",
		"/Container/alice/job1/tmp",
	} {
		if _, ok := store.dirs[dir]; !ok {
			t.Errorf("folder %s was not created", dir)
		}
	}
	if store.dirs["/Output"] != "777" {
		t.Errorf("output root permission = %s, want 777", store.dirs["/Output"])
	}

	for _, file := range []string{
		"/Container/alice/job1/NativeContainerScripts/ps.sh",
		"/Container/alice/job1/NativeContainerScripts/worker.sh",
		"/Container/alice/job1/DockerContainerScripts/ps.sh",
		"/Container/alice/job1/DockerContainerScripts/worker.sh",
		"/Container/alice/job1/JobConfig.yaml",
		"/Container/alice/job1/FrameworkDescription.json",
		"/Container/alice/job1/ssh/keyFiles/job1",
		"/Container/alice/job1/ssh/keyFiles/job1.pub",
	} {
		if _, ok := store.files[file]; !ok {
			t.Errorf("file %s was not uploaded", file)
		}
	}
	if got := string(store.files["/Container/alice/job1/FrameworkDescription.json"]); got != `{"version":"2.0.0"}` {
		t.Errorf("descriptor snapshot = %q", got)
	}
}

func TestProvisionSkipsOutputFolderForExternalLocation(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	p := New(store, testKeygen, Config{}, nil)

	spec := twoRoleSpec()
	spec.OutputDir = "hdfs://elsewhere/data"
	if err := p.Provision(context.Background(), spec, []byte(`{}`), twoRoleScripts()); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	if _, ok := store.dirs["/Output/alice/job1"]; ok {
		t.Error("output folder must not be created when an external location is set")
	}
}

func TestProvisionFailsWhenLogFolderFails(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.failDirs = "/log"
	p := New(store, testKeygen, Config{}, nil)

	err := p.Provision(context.Background(), twoRoleSpec(), []byte(`{}`), twoRoleScripts())
	if !errors.Is(err, apperrors.ErrProvisioning) {
		t.Fatalf("Provision() error = %v, want provisioning error", err)
	}
}

func TestProvisionFailsWhenScriptUploadFails(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.failFiles = "NativeContainerScripts/worker.sh"
	p := New(store, testKeygen, Config{}, nil)

	err := p.Provision(context.Background(), twoRoleSpec(), []byte(`{}`), twoRoleScripts())
	if !errors.Is(err, apperrors.ErrProvisioning) {
		t.Fatalf("Provision() error = %v, want provisioning error", err)
	}
}

func TestProvisionSucceedsWhenKeygenFails(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	p := New(store, failingKeygen, Config{}, nil)

	if err := p.Provision(context.Background(), twoRoleSpec(), []byte(`{}`), twoRoleScripts()); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if _, ok := store.files["/Container/alice/job1/ssh/keyFiles/job1"]; ok {
		t.Error("no key files expected when key generation fails")
	}
}

func TestProvisionSucceedsWithoutKeygen(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	p := New(store, nil, Config{}, nil)

	if err := p.Provision(context.Background(), twoRoleSpec(), []byte(`{}`), twoRoleScripts()); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
}

func TestProvisionSucceedsWhenKeyUploadFails(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.failFiles = "ssh/keyFiles"
	p := New(store, testKeygen, Config{}, nil)

	if err := p.Provision(context.Background(), twoRoleSpec(), []byte(`{}`), twoRoleScripts()); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
}

func TestProvisionUsesNamespaceQualifiedName(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	p := New(store, nil, Config{}, nil)

	spec := twoRoleSpec()
	spec.Namespace = "team"
	if err := p.Provision(context.Background(), spec, []byte(`{}`), twoRoleScripts()); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	if _, ok := store.dirs["/Container/alice/team~job1/log"]; !ok {
		t.Error("expected the namespace-qualified context folder")
	}
}
