package descriptor

import (
	"bytes"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/lanya16/pai/internal/job"
)

// Script folder names under the per-job context folder, one per container
// runtime style. The provisioner uploads into these; the entry points and
// rendered scripts reference them.
const (
	ScriptFolderNative    = "NativeContainerScripts"
	ScriptFolderUserImage = "DockerContainerScripts"
)

// Env feature flags read from the job's free-form environment map.
const (
	envDebug   = "isDebug"     // keep the container alive after a failure
	envUseRDMA = "paiUsesRDMA" // request the specialized interconnect
)

type envVar struct {
	Name  string
	Value string
}

// scriptData parameterizes both launch script templates.
type scriptData struct {
	JobName        string
	UserName       string
	RoleName       string
	RoleIndex      int
	TaskCount      int
	TotalTaskCount int
	RoleTaskCounts string // role:count pairs in spec order
	Image          string
	Command        string
	OutputDir      string
	ContextDir     string
	Env            []envVar
	Debug          bool
	UseRDMA        bool
}

// nativeScript bootstraps a task under the orchestrator-native runtime. It
// exports the task identity, stages the context folder, and either runs the
// user command directly or hands off to the user-image script.
var nativeScript = template.Must(template.New("native").Parse(`#!/bin/bash
# Launch script for task role {{.RoleName}} of job {{.JobName}}. Generated; do not edit.
set -o errexit
set -o nounset
set -o pipefail

export PAI_JOB_NAME={{.JobName}}
export PAI_USER_NAME={{.UserName}}
export PAI_TASK_ROLE_NAME={{.RoleName}}
export PAI_TASK_ROLE_INDEX={{.RoleIndex}}
export PAI_TASK_ROLE_TASK_COUNT={{.TaskCount}}
export PAI_JOB_TASK_COUNT={{.TotalTaskCount}}
export PAI_TASK_ROLE_LIST={{.RoleTaskCounts}}
export PAI_OUTPUT_DIR={{.OutputDir}}
export PAI_CONTEXT_DIR={{.ContextDir}}
export PAI_CURRENT_TASK_INDEX=${CONTAINER_TASK_INDEX:-0}
{{- range .Env}}
export {{.Name}}={{printf "%q" .Value}}
{{- end}}
{{- if .UseRDMA}}

# The job requested the specialized interconnect.
export NCCL_IB_DISABLE=0
export RDMA_DEVICE=${RDMA_DEVICE:-mlx5_0}
{{- end}}

task_failed() {
{{- if .Debug}}
  # Debug mode: keep the container alive for inspection instead of exiting.
  echo "task failed with code $1, sleeping for debug" >&2
  sleep infinity
{{- end}}
  exit "$1"
}

trap 'task_failed $?' ERR
{{if .Image}}exec bash {{.ContextDir}}/DockerContainerScripts/{{.RoleName}}.sh{{else}}{{.Command}}{{end}}
`))

// userImageScript runs the task inside the user-supplied image.
var userImageScript = template.Must(template.New("userImage").Parse(`#!/bin/bash
# User-image launch script for task role {{.RoleName}} of job {{.JobName}}. Generated; do not edit.
set -o errexit
set -o nounset
set -o pipefail

docker pull {{.Image}}
exec docker run --rm \
  --name pai-{{.JobName}}-{{.RoleName}}-${PAI_CURRENT_TASK_INDEX} \
  --network host \
  --env-file <(env | grep ^PAI_) \
{{- range .Env}}
  --env {{.Name}}={{printf "%q" .Value}} \
{{- end}}
  {{.Image}} \
  /bin/bash -c {{printf "%q" .Command}}
`))

// RenderScripts renders the two launch scripts for every task role, in the
// spec's role order. Environment variables are emitted in sorted-name order
// so rendering is deterministic.
func (b *Builder) RenderScripts(spec *job.Spec) ([]job.RoleScripts, error) {
	contextDir := path.Join(b.cfg.ContextRoot, spec.UserName, spec.FullName())
	outputDir := spec.OutputDir
	if outputDir == "" {
		outputDir = path.Join(b.cfg.OutputRoot, spec.UserName, spec.FullName())
	}

	totalTasks := 0
	rolePairs := make([]string, 0, len(spec.TaskRoles))
	for _, role := range spec.TaskRoles {
		totalTasks += role.TaskNumber
		rolePairs = append(rolePairs, role.Name+":"+strconv.Itoa(role.TaskNumber))
	}

	scripts := make([]job.RoleScripts, 0, len(spec.TaskRoles))
	for i, role := range spec.TaskRoles {
		env := mergedEnv(spec.Env, role.Env)
		data := scriptData{
			JobName:        spec.FullName(),
			UserName:       spec.UserName,
			RoleName:       role.Name,
			RoleIndex:      i,
			TaskCount:      role.TaskNumber,
			TotalTaskCount: totalTasks,
			RoleTaskCounts: strings.Join(rolePairs, ","),
			Image:          spec.Image,
			Command:        role.Command,
			OutputDir:      outputDir,
			ContextDir:     contextDir,
			Env:            env,
			Debug:          flagSet(spec.Env, role.Env, envDebug),
			UseRDMA:        flagSet(spec.Env, role.Env, envUseRDMA),
		}

		var native, userImage bytes.Buffer
		if err := nativeScript.Execute(&native, data); err != nil {
			return nil, err
		}
		if err := userImageScript.Execute(&userImage, data); err != nil {
			return nil, err
		}
		scripts = append(scripts, job.RoleScripts{
			RoleName:  role.Name,
			Native:    native.Bytes(),
			UserImage: userImage.Bytes(),
		})
	}
	return scripts, nil
}

// mergedEnv combines job-level and role-level environment variables (role
// wins) into a sorted slice.
func mergedEnv(jobEnv, roleEnv map[string]string) []envVar {
	merged := make(map[string]string, len(jobEnv)+len(roleEnv))
	for k, v := range jobEnv {
		merged[k] = v
	}
	for k, v := range roleEnv {
		merged[k] = v
	}
	names := make([]string, 0, len(merged))
	for k := range merged {
		names = append(names, k)
	}
	sort.Strings(names)

	vars := make([]envVar, 0, len(names))
	for _, name := range names {
		vars = append(vars, envVar{Name: name, Value: merged[name]})
	}
	return vars
}

// flagSet reports whether a feature flag is "true" at role or job level.
func flagSet(jobEnv, roleEnv map[string]string, key string) bool {
	if v, ok := roleEnv[key]; ok {
		return v == "true"
	}
	return jobEnv[key] == "true"
}
