// Package descriptor derives the launcher submission descriptor and per-role
// launch scripts from a declarative job spec. Derivation is pure and
// deterministic: the same spec always yields byte-identical output, so a
// failed-and-retried submission cannot drift.
package descriptor

import "github.com/lanya16/pai/internal/job"

// Descriptor is the orchestration-native submission payload.
type Descriptor struct {
	Version                    string              `json:"version"`
	User                       User                `json:"user"`
	RetryPolicy                RetryPolicy         `json:"retryPolicy"`
	TaskRoles                  map[string]TaskRole `json:"taskRoles"`
	PlatformSpecificParameters PlatformParameters  `json:"platformSpecificParameters"`
}

// User identifies the submitting user to the launcher.
type User struct {
	Name string `json:"name"`
}

// RetryPolicy is the launcher-native retry mode. With FancyRetryPolicy the
// launcher distinguishes transient/platform failures from user-code failures;
// without it, MaxRetryCount is a simple fixed budget.
type RetryPolicy struct {
	MaxRetryCount    int  `json:"maxRetryCount"`
	FancyRetryPolicy bool `json:"fancyRetryPolicy"`
}

// TaskRole is the per-role service descriptor.
type TaskRole struct {
	TaskNumber                  int              `json:"taskNumber"`
	ApplicationCompletionPolicy CompletionPolicy `json:"applicationCompletionPolicy"`
	TaskService                 TaskService      `json:"taskService"`
}

// CompletionPolicy controls when a role's task completions complete the job.
type CompletionPolicy struct {
	MinFailedTaskCount    int `json:"minFailedTaskCount"`
	MinSucceededTaskCount int `json:"minSucceededTaskCount"`
}

// TaskService describes what each task in the role runs.
type TaskService struct {
	EntryPoint      string   `json:"entryPoint"`
	SourceLocations []string `json:"sourceLocations"`
	Resource        Resource `json:"resource"`
}

// Resource is the per-task resource and port request.
type Resource struct {
	CPUNumber       int                      `json:"cpuNumber"`
	MemoryMB        int                      `json:"memoryMB"`
	GPUNumber       int                      `json:"gpuNumber"`
	PortDefinitions map[string]job.PortRange `json:"portDefinitions"`
}

// PlatformParameters carries cluster placement knobs.
type PlatformParameters struct {
	Queue           string     `json:"queue"`
	TaskNodeGpuType string     `json:"taskNodeGpuType,omitempty"`
	GangAllocation  bool       `json:"gangAllocation"`
	AMResource      AMResource `json:"amResource"`
}

// AMResource reserves resources for the launcher's per-job manager.
type AMResource struct {
	CPUNumber int `json:"cpuNumber"`
	MemoryMB  int `json:"memoryMB"`
}
