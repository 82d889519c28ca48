package job

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"

	"github.com/lanya16/pai/internal/apperrors"
	"github.com/lanya16/pai/internal/exitspec"
	"github.com/lanya16/pai/internal/launcher"
	"github.com/lanya16/pai/internal/observability"
)

// Validation limits
const (
	maxJobNameLength = 255
	maxTaskNumber    = 10000
	maxCPUNumber     = 128
	maxMemoryMB      = 1 << 20 // 1 TB
	maxGPUNumber     = 16
)

// jobNamePattern allows alphanumeric, hyphens, and underscores.
var jobNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Caller identifies the requesting user for ownership checks.
type Caller struct {
	Name  string
	Admin bool
}

// Service is the job façade: it derives submission payloads, provisions the
// job context, submits to the launcher, and translates launcher status into
// the stable job model.
//
// The Service is stateless beyond the read-only exit-spec table: job state
// lives in the launcher and is fetched fresh on every query.
type Service struct {
	launcher     Launcher
	builder      Builder
	provisioner  Provisioner
	store        ContextStore
	exitSpecs    *exitspec.Table
	metrics      *observability.Metrics
	defaultQueue string
	contextRoot  string
}

// Deps carries the service's collaborators.
type Deps struct {
	Launcher     Launcher
	Builder      Builder
	Provisioner  Provisioner
	Store        ContextStore
	ExitSpecs    *exitspec.Table
	Metrics      *observability.Metrics
	DefaultQueue string
	ContextRoot  string
}

// NewService creates a job service.
func NewService(deps Deps) *Service {
	if deps.DefaultQueue == "" {
		deps.DefaultQueue = "default"
	}
	if deps.ContextRoot == "" {
		deps.ContextRoot = "/Container"
	}
	return &Service{
		launcher:     deps.Launcher,
		builder:      deps.Builder,
		provisioner:  deps.Provisioner,
		store:        deps.Store,
		exitSpecs:    deps.ExitSpecs,
		metrics:      deps.Metrics,
		defaultQueue: deps.DefaultQueue,
		contextRoot:  deps.ContextRoot,
	}
}

// List returns job summaries, optionally filtered by owning user.
func (s *Service) List(ctx context.Context, userName string) ([]Summary, error) {
	infos, err := s.launcher.ListFrameworks(ctx, userName)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(infos))
	for _, info := range infos {
		summaries = append(summaries, Summary{
			Name:           info.FrameworkName,
			UserName:       info.UserName,
			VirtualCluster: info.Queue,
			State:          TranslateJobState(info.FrameworkState, info.ApplicationExitCode),
			TotalRetries:   AggregateRetries(info.FrameworkRetryPolicyState).Total,
			CreatedTime:    info.FirstRequestTimestamp,
			CompletedTime:  info.FrameworkCompletedTimestamp,
		})
	}
	return summaries, nil
}

// Get returns the stable job-detail record for one job.
func (s *Service) Get(ctx context.Context, name string) (*Detail, error) {
	info, err := s.launcher.GetFramework(ctx, name)
	if err != nil {
		return nil, err
	}
	return buildDetail(info, s.exitSpecs), nil
}

// Submit derives the submission descriptor and launch scripts, provisions the
// job's store context, and submits the framework. The launcher is not called
// when any required provisioning sub-task fails, so a job is never submitted
// with an incomplete context.
func (s *Service) Submit(ctx context.Context, caller Caller, spec *Spec) error {
	if spec.UserName == "" {
		spec.UserName = caller.Name
	}
	if spec.VirtualCluster == "" {
		spec.VirtualCluster = s.defaultQueue
	}
	if spec.UserName != caller.Name && !caller.Admin {
		return apperrors.Forbidden("job", spec.FullName(),
			fmt.Sprintf("user %s may not submit a job as %s", caller.Name, spec.UserName))
	}
	if err := validate(spec); err != nil {
		return err
	}

	logger := slog.With("job", spec.FullName(), "user", spec.UserName, "virtualCluster", spec.VirtualCluster)

	descriptor, scripts, err := s.builder.BuildSubmission(spec)
	if err != nil {
		return err
	}

	if err := s.provisioner.Provision(ctx, spec, descriptor, scripts); err != nil {
		logger.Error("Job context provisioning failed", "error", err)
		return err
	}

	if err := s.launcher.PutFramework(ctx, spec.FullName(), descriptor); err != nil {
		logger.Error("Framework submission failed", "error", err)
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(ctx, spec.VirtualCluster)
	}
	logger.Info("Job submitted")
	return nil
}

// Delete removes a job. Only the owning user or an administrator may delete.
func (s *Service) Delete(ctx context.Context, caller Caller, name string) error {
	if err := s.checkOwnership(ctx, caller, name, "delete"); err != nil {
		return err
	}
	if err := s.launcher.DeleteFramework(ctx, name); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordJobDeleted(ctx)
	}
	slog.Info("Job deleted", "job", name, "caller", caller.Name)
	return nil
}

// SetExecutionType stops or resumes a job. Only the owning user or an
// administrator may invoke it.
func (s *Service) SetExecutionType(ctx context.Context, caller Caller, name, executionType string) error {
	if executionType != launcher.ExecutionStart && executionType != launcher.ExecutionStop {
		return apperrors.Validation("executionType",
			fmt.Sprintf("executionType must be %s or %s", launcher.ExecutionStart, launcher.ExecutionStop))
	}
	if err := s.checkOwnership(ctx, caller, name, "set execution type of"); err != nil {
		return err
	}
	if err := s.launcher.PutExecutionType(ctx, name, executionType); err != nil {
		return err
	}
	slog.Info("Job execution type changed", "job", name, "executionType", executionType, "caller", caller.Name)
	return nil
}

// checkOwnership fetches the current orchestration-level ownership record and
// rejects callers that neither own the job nor hold admin rights. The check
// is not atomic with the following mutation; the upstream API exposes no
// conditional-update primitive.
func (s *Service) checkOwnership(ctx context.Context, caller Caller, name, action string) error {
	if caller.Admin {
		return nil
	}
	info, err := s.launcher.GetFramework(ctx, name)
	if err != nil {
		return err
	}
	owner := info.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.User.Name
	if owner != caller.Name {
		return apperrors.Forbidden("job", name,
			fmt.Sprintf("user %s may not %s job owned by %s", caller.Name, action, owner))
	}
	return nil
}

// GetConfig reads back the job-spec snapshot persisted at submission,
// preferring the YAML snapshot and falling back to the historical JSON one.
func (s *Service) GetConfig(ctx context.Context, name string) (content []byte, format string, err error) {
	owner, err := s.ownerOf(ctx, name)
	if err != nil {
		return nil, "", err
	}
	base := path.Join(s.contextRoot, owner, name)

	content, err = s.store.ReadFile(ctx, path.Join(base, "JobConfig.yaml"))
	if err == nil {
		return content, "yaml", nil
	}
	content, jsonErr := s.store.ReadFile(ctx, path.Join(base, "JobConfig.json"))
	if jsonErr == nil {
		return content, "json", nil
	}
	return nil, "", apperrors.NotFound("job config", name)
}

// SSHContainer is one reachable task container with its SSH endpoint.
type SSHContainer struct {
	Name    string `json:"name"`
	IP      string `json:"ip"`
	SSHPort string `json:"sshPort"`
}

// SSHKeyPairLocation points at the provisioned key-pair files in the store.
type SSHKeyPairLocation struct {
	FolderPath         string `json:"folderPath"`
	PublicKeyFileName  string `json:"publicKeyFileName"`
	PrivateKeyFileName string `json:"privateKeyFileName"`
}

// SSHInfo is the per-job SSH access record.
type SSHInfo struct {
	Containers []SSHContainer      `json:"containers"`
	KeyPair    *SSHKeyPairLocation `json:"keyPair,omitempty"`
}

// GetSSHInfo resolves the job's SSH endpoints and key-pair location. The
// newer shared key-pair layout is preferred; jobs provisioned before it used
// a per-application .ssh folder, which stays readable indefinitely.
func (s *Service) GetSSHInfo(ctx context.Context, name string) (*SSHInfo, error) {
	info, err := s.launcher.GetFramework(ctx, name)
	if err != nil {
		return nil, err
	}
	owner := info.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.User.Name
	app := info.AggregatedFrameworkStatus.AggregatedApplicationStatus
	if app == nil {
		return nil, apperrors.NotFound("ssh info", name)
	}

	sshInfo := &SSHInfo{Containers: sshContainers(app.AggregatedTaskRoleStatuses)}

	keyPair, err := s.locateKeyPair(ctx, owner, name, app.ApplicationStatus.ApplicationID)
	if err != nil {
		return nil, err
	}
	sshInfo.KeyPair = keyPair
	return sshInfo, nil
}

// locateKeyPair finds the key-pair folder, trying the shared layout first and
// the legacy per-application layout second.
func (s *Service) locateKeyPair(ctx context.Context, owner, name, appID string) (*SSHKeyPairLocation, error) {
	shared := path.Join(s.contextRoot, owner, name, "ssh", "keyFiles")
	if entries, err := s.store.List(ctx, shared); err == nil && len(entries) > 0 {
		return &SSHKeyPairLocation{
			FolderPath:         shared,
			PublicKeyFileName:  name + ".pub",
			PrivateKeyFileName: name,
		}, nil
	}

	if appID == "" {
		return nil, apperrors.NotFound("ssh key pair", name)
	}
	legacy := path.Join(s.contextRoot, owner, name, "ssh", appID, ".ssh")
	entries, err := s.store.List(ctx, legacy)
	if err != nil || len(entries) == 0 {
		return nil, apperrors.NotFound("ssh key pair", name)
	}
	return &SSHKeyPairLocation{
		FolderPath:         legacy,
		PublicKeyFileName:  appID + ".pub",
		PrivateKeyFileName: appID,
	}, nil
}

// sshContainers collects running containers that expose an ssh port.
func sshContainers(roleStatuses map[string]launcher.TaskRoleStatus) []SSHContainer {
	var containers []SSHContainer
	for _, role := range buildTaskRoles(roleStatuses) {
		for _, task := range role.Tasks {
			port, ok := task.ContainerPorts["ssh"]
			if !ok || task.ContainerIP == "" {
				continue
			}
			containers = append(containers, SSHContainer{
				Name:    role.Name + "-" + strconv.Itoa(task.Index),
				IP:      task.ContainerIP,
				SSHPort: port,
			})
		}
	}
	return containers
}

// ownerOf resolves a job's owning user from the launcher ownership record.
func (s *Service) ownerOf(ctx context.Context, name string) (string, error) {
	info, err := s.launcher.GetFramework(ctx, name)
	if err != nil {
		return "", err
	}
	return info.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.User.Name, nil
}

// validate validates a job spec. Does not modify the spec.
func validate(spec *Spec) error {
	if spec.JobName == "" {
		return apperrors.Validation("jobName", "job name is required")
	}
	if len(spec.JobName) > maxJobNameLength {
		return apperrors.Validation("jobName", fmt.Sprintf("job name exceeds maximum length of %d", maxJobNameLength))
	}
	if !jobNamePattern.MatchString(spec.JobName) {
		return apperrors.Validation("jobName", "job name must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	if spec.UserName == "" {
		return apperrors.Validation("userName", "user name is required")
	}
	if len(spec.TaskRoles) == 0 {
		return apperrors.Validation("taskRoles", "at least one task role is required")
	}

	seen := make(map[string]bool, len(spec.TaskRoles))
	for i, role := range spec.TaskRoles {
		field := fmt.Sprintf("taskRoles[%d]", i)
		if role.Name == "" {
			return apperrors.Validation(field+".name", "task role name is required")
		}
		if seen[role.Name] {
			return apperrors.Validation(field+".name", fmt.Sprintf("duplicate task role name %q", role.Name))
		}
		seen[role.Name] = true

		if role.TaskNumber < 1 || role.TaskNumber > maxTaskNumber {
			return apperrors.Validation(field+".taskNumber", fmt.Sprintf("task number must be in [1, %d]", maxTaskNumber))
		}
		if role.Command == "" {
			return apperrors.Validation(field+".command", "task role command is required")
		}
		if role.CPUNumber < 1 || role.CPUNumber > maxCPUNumber {
			return apperrors.Validation(field+".cpuNumber", fmt.Sprintf("cpu number must be in [1, %d]", maxCPUNumber))
		}
		if role.MemoryMB < 1 || role.MemoryMB > maxMemoryMB {
			return apperrors.Validation(field+".memoryMB", fmt.Sprintf("memory must be in [1, %d] MB", maxMemoryMB))
		}
		if role.GPUNumber < 0 || role.GPUNumber > maxGPUNumber {
			return apperrors.Validation(field+".gpuNumber", fmt.Sprintf("gpu number must be in [0, %d]", maxGPUNumber))
		}
		for portName, r := range role.Ports {
			if portName == "" {
				return apperrors.Validation(field+".ports", "port name must not be empty")
			}
			if r.Start < 0 || r.Count < 1 {
				return apperrors.Validation(field+".ports."+portName, "port range requires start >= 0 and count >= 1")
			}
		}
	}
	return nil
}
