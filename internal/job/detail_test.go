package job

import (
	"testing"

	"github.com/lanya16/pai/internal/exitspec"
	"github.com/lanya16/pai/internal/launcher"
)

const testSpecTable = `
specs:
  - code: 177
    phrase: USER_SCRIPT_FAILED
    category: user
    reason: user command returned a non-zero exit code
  - code: 1
    phrase: UNKNOWN_FAILURE
    category: unknown
    fallbackFor: positive
  - code: -8000
    phrase: UNKNOWN_PLATFORM_FAILURE
    category: unknown
    fallbackFor: negative
`

func testTable(t *testing.T) *exitspec.Table {
	t.Helper()
	table, err := exitspec.Parse([]byte(testSpecTable))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return table
}

func frameworkInfo(state string, exitCode *int) *launcher.FrameworkInfo {
	info := &launcher.FrameworkInfo{Name: "job1"}
	info.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.User.Name = "alice"
	info.AggregatedFrameworkRequest.FrameworkRequest.FrameworkDescriptor.PlatformSpecificParameters.Queue = "prod"
	info.AggregatedFrameworkStatus.FrameworkStatus = launcher.FrameworkStatus{
		FrameworkState:            state,
		FrameworkCreatedTimestamp: 1700000000000,
		FrameworkRetryPolicyState: launcher.RetryPolicyState{TransientNormalRetriedCount: 1},
	}
	info.AggregatedFrameworkStatus.AggregatedApplicationStatus = &launcher.AggregatedApplicationStatus{
		ApplicationStatus: launcher.ApplicationStatus{
			ApplicationID:       "application_1",
			ApplicationExitCode: exitCode,
		},
		AggregatedTaskRoleStatuses: map[string]launcher.TaskRoleStatus{
			"worker": {TaskStatuses: launcher.TaskStatuses{TaskStatusArray: []launcher.TaskStatus{
				{TaskIndex: 0, TaskState: launcher.TaskStateContainerCompleted, ContainerExitCode: exitCode},
			}}},
			"ps": {TaskStatuses: launcher.TaskStatuses{TaskStatusArray: []launcher.TaskStatus{
				{TaskIndex: 0, TaskState: launcher.TaskStateContainerRunning, ContainerIP: "10.0.0.4"},
			}}},
		},
	}
	return info
}

func TestBuildDetailRunningHasNoDiagnosis(t *testing.T) {
	t.Parallel()

	detail := buildDetail(frameworkInfo(launcher.StateApplicationRunning, nil), testTable(t))

	if detail.State != StateRunning {
		t.Errorf("State = %s, want %s", detail.State, StateRunning)
	}
	if detail.ExitDiagnosis != nil {
		t.Error("ExitDiagnosis must be absent for a non-terminal job")
	}
	if detail.UserName != "alice" || detail.VirtualCluster != "prod" {
		t.Errorf("ownership = %s/%s, want alice/prod", detail.UserName, detail.VirtualCluster)
	}
}

func TestBuildDetailTerminalHasDiagnosis(t *testing.T) {
	t.Parallel()
	info := frameworkInfo(launcher.StateFrameworkCompleted, intPtr(177))
	app := info.AggregatedFrameworkStatus.AggregatedApplicationStatus
	app.ApplicationStatus.ApplicationExitDiagnostics = "worker 0 crashed"
	app.ApplicationStatus.ApplicationExitTriggerMessage = "task failed"
	app.ApplicationStatus.ApplicationExitTriggerTaskRoleName = "worker"
	app.ApplicationStatus.ApplicationExitTriggerTaskIndex = intPtr(0)

	detail := buildDetail(info, testTable(t))

	if detail.State != StateFailed {
		t.Fatalf("State = %s, want %s", detail.State, StateFailed)
	}
	diag := detail.ExitDiagnosis
	if diag == nil {
		t.Fatal("ExitDiagnosis must be present for a terminal job")
	}
	if diag.Code == nil || *diag.Code != 177 {
		t.Errorf("Code = %v, want 177", diag.Code)
	}
	if diag.Spec == nil || diag.Spec.Phrase != "USER_SCRIPT_FAILED" {
		t.Errorf("Spec = %+v, want USER_SCRIPT_FAILED entry", diag.Spec)
	}
	if diag.Segments.Launcher != "worker 0 crashed" {
		t.Errorf("Launcher segment = %q", diag.Segments.Launcher)
	}
	if diag.Trigger == nil || diag.Trigger.TaskRoleName != "worker" || diag.Trigger.TaskIndex == nil || *diag.Trigger.TaskIndex != 0 {
		t.Errorf("Trigger = %+v, want worker[0]", diag.Trigger)
	}
}

func TestBuildDetailFallbackSpecStampsCode(t *testing.T) {
	t.Parallel()

	detail := buildDetail(frameworkInfo(launcher.StateFrameworkCompleted, intPtr(5000)), testTable(t))

	diag := detail.ExitDiagnosis
	if diag == nil || diag.Spec == nil {
		t.Fatal("expected a diagnosis with a fallback spec")
	}
	if diag.Spec.Phrase != "UNKNOWN_FAILURE" {
		t.Errorf("Phrase = %q, want positive fallback", diag.Spec.Phrase)
	}
	if diag.Spec.Code != 5000 {
		t.Errorf("Code = %d, want 5000", diag.Spec.Code)
	}
}

func TestBuildDetailTaskRolesSortedAndTranslated(t *testing.T) {
	t.Parallel()

	detail := buildDetail(frameworkInfo(launcher.StateApplicationRunning, nil), testTable(t))

	if len(detail.TaskRoles) != 2 {
		t.Fatalf("TaskRoles count = %d, want 2", len(detail.TaskRoles))
	}
	if detail.TaskRoles[0].Name != "ps" || detail.TaskRoles[1].Name != "worker" {
		t.Errorf("role order = %s, %s; want ps, worker", detail.TaskRoles[0].Name, detail.TaskRoles[1].Name)
	}
	if got := detail.TaskRoles[0].Tasks[0].State; got != TaskRunning {
		t.Errorf("ps task state = %s, want %s", got, TaskRunning)
	}
}

func TestBuildDetailWithoutApplicationStatus(t *testing.T) {
	t.Parallel()
	info := frameworkInfo(launcher.StateFrameworkWaiting, nil)
	info.AggregatedFrameworkStatus.AggregatedApplicationStatus = nil

	detail := buildDetail(info, testTable(t))

	if detail.State != StateWaiting {
		t.Errorf("State = %s, want %s", detail.State, StateWaiting)
	}
	if len(detail.TaskRoles) != 0 {
		t.Errorf("TaskRoles = %v, want empty", detail.TaskRoles)
	}
	if detail.ExitDiagnosis != nil {
		t.Error("ExitDiagnosis must be absent without application status")
	}
}

func TestBuildDetailRetryBreakdown(t *testing.T) {
	t.Parallel()

	detail := buildDetail(frameworkInfo(launcher.StateApplicationRunning, nil), testTable(t))

	if detail.Retries.Platform != 1 || detail.Retries.Total != 1 {
		t.Errorf("Retries = %+v, want one platform retry", detail.Retries)
	}
}
