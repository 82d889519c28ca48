package job

import (
	"log/slog"
	"sort"

	"github.com/lanya16/pai/internal/diagnostics"
	"github.com/lanya16/pai/internal/exitspec"
	"github.com/lanya16/pai/internal/launcher"
)

// buildDetail computes the stable job-detail record from a launcher status
// document. It is computed fresh on every query and never persisted.
func buildDetail(info *launcher.FrameworkInfo, specs *exitspec.Table) *Detail {
	fwStatus := info.AggregatedFrameworkStatus.FrameworkStatus
	descriptor := info.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor

	detail := &Detail{
		Name:           info.Name,
		UserName:       descriptor.User.Name,
		VirtualCluster: descriptor.PlatformSpecificParameters.Queue,
		Retries:        AggregateRetries(fwStatus.FrameworkRetryPolicyState),
		CreatedTime:    fwStatus.FrameworkCreatedTimestamp,
		CompletedTime:  fwStatus.FrameworkCompletedTimestamp,
		TaskRoles:      []TaskRoleDetail{},
	}

	app := info.AggregatedFrameworkStatus.AggregatedApplicationStatus
	var exitCode *int
	if app != nil {
		exitCode = app.ApplicationStatus.ApplicationExitCode
		detail.LaunchedTime = app.ApplicationStatus.ApplicationLaunchedTimestamp
		detail.TrackingURL = app.ApplicationStatus.TrackingURL
		detail.TaskRoles = buildTaskRoles(app.AggregatedTaskRoleStatuses)
	}

	detail.State = TranslateJobState(fwStatus.FrameworkState, exitCode)
	if terminal(detail.State) && app != nil {
		detail.ExitDiagnosis = buildDiagnosis(info.Name, &app.ApplicationStatus, specs)
	}
	return detail
}

// buildDiagnosis classifies a terminal application exit: the exit-spec entry
// for the code (exact or fallback), the segmented raw diagnostics, and the
// trigger locator identifying which task caused the job-level exit.
func buildDiagnosis(name string, app *launcher.ApplicationStatus, specs *exitspec.Table) *ExitDiagnosis {
	segments, err := diagnostics.Extract(app.ApplicationExitDiagnostics)
	if err != nil {
		// A malformed runtime segment degrades that segment only.
		slog.Warn("Runtime diagnostics segment unavailable", "job", name, "error", err)
	}

	diagnosis := &ExitDiagnosis{
		Code:     app.ApplicationExitCode,
		Spec:     specs.Lookup(app.ApplicationExitCode),
		Segments: segments,
	}
	if app.ApplicationExitTriggerMessage != "" || app.ApplicationExitTriggerTaskRoleName != "" {
		diagnosis.Trigger = &ExitTrigger{
			Message:      app.ApplicationExitTriggerMessage,
			TaskRoleName: app.ApplicationExitTriggerTaskRoleName,
			TaskIndex:    app.ApplicationExitTriggerTaskIndex,
		}
	}
	return diagnosis
}

// buildTaskRoles flattens the launcher's per-role task statuses in stable
// role-name order.
func buildTaskRoles(roleStatuses map[string]launcher.TaskRoleStatus) []TaskRoleDetail {
	names := make([]string, 0, len(roleStatuses))
	for name := range roleStatuses {
		names = append(names, name)
	}
	sort.Strings(names)

	roles := make([]TaskRoleDetail, 0, len(names))
	for _, name := range names {
		statuses := roleStatuses[name].TaskStatuses.TaskStatusArray
		tasks := make([]TaskStatus, 0, len(statuses))
		for _, ts := range statuses {
			tasks = append(tasks, TaskStatus{
				Index:          ts.TaskIndex,
				State:          TranslateTaskState(ts.TaskState, ts.ContainerExitCode),
				ContainerID:    ts.ContainerID,
				ContainerIP:    ts.ContainerIP,
				ContainerPorts: ts.ContainerPorts,
				ContainerGpus:  ts.ContainerGpus,
				ExitCode:       ts.ContainerExitCode,
			})
		}
		roles = append(roles, TaskRoleDetail{Name: name, Tasks: tasks})
	}
	return roles
}
