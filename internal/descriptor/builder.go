package descriptor

import (
	"encoding/json"
	"path"

	"github.com/lanya16/pai/internal/config"
	"github.com/lanya16/pai/internal/job"
)

// Version is the descriptor schema version understood by the launcher.
const Version = "2.0.0"

// simpleRetrySentinel is the reserved retryCount value that selects the
// simple retry mode instead of the launcher's fancy retry policy.
const simpleRetrySentinel = -2

// Reserved port names every role is guaranteed to receive.
const (
	portHTTP = "http"
	portSSH  = "ssh"
)

// defaultQueue is used when the spec names no virtual cluster.
const defaultQueue = "default"

// amResource is the fixed manager reservation per job.
var amResource = AMResource{CPUNumber: 1, MemoryMB: 1024}

// Config holds the store roots rendered into entry points and scripts.
type Config struct {
	OutputRoot  string // root of job output folders
	ContextRoot string // root of per-job context folders
}

// LoadConfigFromEnv loads builder configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		OutputRoot:  config.GetEnv("OUTPUT_ROOT", "/Output"),
		ContextRoot: config.GetEnv("CONTEXT_ROOT", "/Container"),
	}
}

// Builder derives submission payloads. It holds no mutable state.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "/Output"
	}
	if cfg.ContextRoot == "" {
		cfg.ContextRoot = "/Container"
	}
	return &Builder{cfg: cfg}
}

// BuildSubmission implements job.Builder: the serialized descriptor plus the
// rendered launch scripts for every role.
func (b *Builder) BuildSubmission(spec *job.Spec) ([]byte, []job.RoleScripts, error) {
	descriptor := b.Build(spec)
	payload, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	scripts, err := b.RenderScripts(spec)
	if err != nil {
		return nil, nil, err
	}
	return payload, scripts, nil
}

// Build derives the submission descriptor. Pure: the input spec is never
// mutated, and identical specs yield identical descriptors.
func (b *Builder) Build(spec *job.Spec) *Descriptor {
	queue := spec.VirtualCluster
	if queue == "" {
		queue = defaultQueue
	}

	d := &Descriptor{
		Version: Version,
		User:    User{Name: spec.UserName},
		RetryPolicy: RetryPolicy{
			MaxRetryCount:    spec.RetryCount,
			FancyRetryPolicy: spec.RetryCount != simpleRetrySentinel,
		},
		TaskRoles: make(map[string]TaskRole, len(spec.TaskRoles)),
		PlatformSpecificParameters: PlatformParameters{
			Queue:           queue,
			TaskNodeGpuType: gpuType(spec),
			GangAllocation:  spec.Env["gangAllocation"] != "false",
			AMResource:      amResource,
		},
	}

	contextDir := path.Join(b.cfg.ContextRoot, spec.UserName, spec.FullName())
	for _, role := range spec.TaskRoles {
		d.TaskRoles[role.Name] = TaskRole{
			TaskNumber: role.TaskNumber,
			ApplicationCompletionPolicy: CompletionPolicy{
				MinFailedTaskCount:    role.MinFailedTaskCount,
				MinSucceededTaskCount: role.MinSucceededTaskCount,
			},
			TaskService: TaskService{
				EntryPoint:      role.Name + ".sh",
				SourceLocations: []string{path.Join(contextDir, ScriptFolderNative)},
				Resource: Resource{
					CPUNumber:       role.CPUNumber,
					MemoryMB:        role.MemoryMB,
					GPUNumber:       role.GPUNumber,
					PortDefinitions: withReservedPorts(role.Ports),
				},
			},
		}
	}
	return d
}

// withReservedPorts copies the caller's port ranges and injects a default
// single-port allocation for the reserved http and ssh names when absent,
// so every role has both without caller boilerplate.
func withReservedPorts(ports map[string]job.PortRange) map[string]job.PortRange {
	out := make(map[string]job.PortRange, len(ports)+2)
	for name, r := range ports {
		out[name] = r
	}
	for _, reserved := range []string{portHTTP, portSSH} {
		if _, ok := out[reserved]; !ok {
			out[reserved] = job.PortRange{Start: 0, Count: 1}
		}
	}
	return out
}

// gpuType returns the first task-role GPU type constraint, which the
// launcher applies as a job-wide node placement parameter.
func gpuType(spec *job.Spec) string {
	for _, role := range spec.TaskRoles {
		if role.GPUType != "" {
			return role.GPUType
		}
	}
	return ""
}
