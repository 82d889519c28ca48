// Package job defines the stable job model, the orchestration-state
// translation logic, and the Service façade over the external launcher.
package job

import (
	"context"

	"github.com/lanya16/pai/internal/diagnostics"
	"github.com/lanya16/pai/internal/exitspec"
	"github.com/lanya16/pai/internal/hdfs"
	"github.com/lanya16/pai/internal/launcher"
)

// State is the stable user-facing job state.
type State string

const (
	StateWaiting   State = "WAITING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateStopped   State = "STOPPED"
	StateFailed    State = "FAILED"
	StateUnknown   State = "UNKNOWN"
)

// TaskState is the stable per-task state. Tasks have no stopped state:
// a user stop completes the whole job, not individual tasks.
type TaskState string

const (
	TaskWaiting   TaskState = "WAITING"
	TaskRunning   TaskState = "RUNNING"
	TaskSucceeded TaskState = "SUCCEEDED"
	TaskFailed    TaskState = "FAILED"
	TaskUnknown   TaskState = "UNKNOWN"
)

// PortRange is a named port allocation request: Count ports starting at
// a base chosen by the launcher plus Start.
type PortRange struct {
	Start int `json:"start" yaml:"start"`
	Count int `json:"count" yaml:"count"`
}

// TaskRoleSpec describes one named, homogeneous group of tasks.
type TaskRoleSpec struct {
	Name                  string               `json:"name" yaml:"name"`
	TaskNumber            int                  `json:"taskNumber" yaml:"taskNumber"`
	CPUNumber             int                  `json:"cpuNumber" yaml:"cpuNumber"`
	MemoryMB              int                  `json:"memoryMB" yaml:"memoryMB"`
	GPUNumber             int                  `json:"gpuNumber" yaml:"gpuNumber"`
	GPUType               string               `json:"gpuType,omitempty" yaml:"gpuType,omitempty"`
	Ports                 map[string]PortRange `json:"ports,omitempty" yaml:"ports,omitempty"`
	MinFailedTaskCount    int                  `json:"minFailedTaskCount" yaml:"minFailedTaskCount"`
	MinSucceededTaskCount int                  `json:"minSucceededTaskCount" yaml:"minSucceededTaskCount"`
	Command               string               `json:"command" yaml:"command"`
	Env                   map[string]string    `json:"env,omitempty" yaml:"env,omitempty"`
}

// Spec is the declarative job specification. It is immutable once submitted;
// the submission descriptor and launch scripts are derived from it wholesale.
type Spec struct {
	JobName        string            `json:"jobName" yaml:"jobName"`
	UserName       string            `json:"userName" yaml:"userName"`
	Namespace      string            `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	VirtualCluster string            `json:"virtualCluster,omitempty" yaml:"virtualCluster,omitempty"`
	RetryCount     int               `json:"retryCount" yaml:"retryCount"`
	OutputDir      string            `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	Image          string            `json:"image,omitempty" yaml:"image,omitempty"`
	Env            map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	TaskRoles      []TaskRoleSpec    `json:"taskRoles" yaml:"taskRoles"`
}

// FullName returns the namespace-qualified framework name.
func (s *Spec) FullName() string {
	if s.Namespace != "" {
		return s.Namespace + "~" + s.JobName
	}
	return s.JobName
}

// RetryBreakdown splits the launcher's retry counters by cause so callers
// can distinguish self-healing transient failures (platform), capacity
// contention (resource), and user-code failures. Total is always the sum.
type RetryBreakdown struct {
	Total    int `json:"total"`
	Platform int `json:"platform"`
	Resource int `json:"resource"`
	User     int `json:"user"`
}

// Summary is one row of a job listing.
type Summary struct {
	Name           string `json:"name"`
	UserName       string `json:"userName"`
	VirtualCluster string `json:"virtualCluster"`
	State          State  `json:"state"`
	TotalRetries   int    `json:"totalRetries"`
	CreatedTime    int64  `json:"createdTime"`
	CompletedTime  int64  `json:"completedTime"`
}

// TaskStatus is the stable per-task view within a Detail.
type TaskStatus struct {
	Index          int               `json:"index"`
	State          TaskState         `json:"state"`
	ContainerID    string            `json:"containerId,omitempty"`
	ContainerIP    string            `json:"containerIp,omitempty"`
	ContainerPorts map[string]string `json:"containerPorts,omitempty"`
	ContainerGpus  string            `json:"containerGpus,omitempty"`
	ExitCode       *int              `json:"exitCode,omitempty"`
}

// TaskRoleDetail groups task statuses under their role.
type TaskRoleDetail struct {
	Name  string       `json:"name"`
	Tasks []TaskStatus `json:"tasks"`
}

// ExitTrigger locates the task whose completion triggered the job-level exit.
type ExitTrigger struct {
	Message      string `json:"message,omitempty"`
	TaskRoleName string `json:"taskRoleName,omitempty"`
	TaskIndex    *int   `json:"taskIndex,omitempty"`
}

// ExitDiagnosis is the structured exit classification of a terminal job.
type ExitDiagnosis struct {
	Code     *int                 `json:"code,omitempty"`
	Spec     *exitspec.Entry      `json:"spec,omitempty"`
	Segments diagnostics.Segments `json:"segments"`
	Trigger  *ExitTrigger         `json:"trigger,omitempty"`
}

// Detail is the stable job-detail record, computed fresh on every query.
// ExitDiagnosis is present only when the job has reached a terminal state.
type Detail struct {
	Name           string           `json:"name"`
	UserName       string           `json:"userName"`
	VirtualCluster string           `json:"virtualCluster"`
	State          State            `json:"state"`
	Retries        RetryBreakdown   `json:"retries"`
	CreatedTime    int64            `json:"createdTime"`
	CompletedTime  int64            `json:"completedTime"`
	LaunchedTime   int64            `json:"launchedTime"`
	TrackingURL    string           `json:"trackingUrl,omitempty"`
	ExitDiagnosis  *ExitDiagnosis   `json:"exitDiagnosis,omitempty"`
	TaskRoles      []TaskRoleDetail `json:"taskRoles"`
}

// RoleScripts holds the two rendered launch scripts for one task role:
// the orchestrator-native runtime style and the user-supplied image style.
type RoleScripts struct {
	RoleName  string
	Native    []byte
	UserImage []byte
}

// Launcher is the subset of the framework launcher API the service consumes.
type Launcher interface {
	ListFrameworks(ctx context.Context, userName string) ([]launcher.SummarizedFrameworkInfo, error)
	GetFramework(ctx context.Context, name string) (*launcher.FrameworkInfo, error)
	PutFramework(ctx context.Context, name string, descriptor []byte) error
	DeleteFramework(ctx context.Context, name string) error
	PutExecutionType(ctx context.Context, name, executionType string) error
}

// Builder derives the submission descriptor and per-role launch scripts
// from a job spec. The derivation must be deterministic.
type Builder interface {
	BuildSubmission(spec *Spec) (descriptor []byte, scripts []RoleScripts, err error)
}

// Provisioner persists the job's distributed-store context before submission.
type Provisioner interface {
	Provision(ctx context.Context, spec *Spec, descriptor []byte, scripts []RoleScripts) error
}

// ContextStore is the read side of the distributed store the service uses
// for config and SSH key retrieval.
type ContextStore interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, path string) ([]hdfs.FileStatus, error)
}
