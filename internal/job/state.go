package job

import "github.com/lanya16/pai/internal/launcher"

// StoppedExitCode is the reserved exit code the launcher reports when a
// framework completed because a user stopped it.
const StoppedExitCode = 214

// TranslateJobState maps a launcher framework state plus application exit
// code to the stable job state. Pure and total: unrecognized states degrade
// to Unknown, never an error.
func TranslateJobState(frameworkState string, exitCode *int) State {
	switch frameworkState {
	case launcher.StateFrameworkWaiting,
		launcher.StateApplicationCreated,
		launcher.StateApplicationLaunched,
		launcher.StateApplicationWaiting:
		return StateWaiting
	case launcher.StateApplicationRunning:
		return StateRunning
	case launcher.StateApplicationRetrievingDiagnostics,
		launcher.StateApplicationCompleted,
		launcher.StateFrameworkCompleted:
		switch {
		case exitCode == nil:
			return StateFailed
		case *exitCode == 0:
			return StateSucceeded
		case *exitCode == StoppedExitCode:
			return StateStopped
		default:
			return StateFailed
		}
	default:
		return StateUnknown
	}
}

// TranslateTaskState maps a launcher task state plus container exit code to
// the stable task state. Same shape as TranslateJobState at task granularity,
// without a stopped case.
func TranslateTaskState(taskState string, exitCode *int) TaskState {
	switch taskState {
	case launcher.TaskStateWaiting,
		launcher.TaskStateContainerRequested,
		launcher.TaskStateContainerAllocated:
		return TaskWaiting
	case launcher.TaskStateContainerRunning:
		return TaskRunning
	case launcher.TaskStateContainerCompleted,
		launcher.TaskStateCompleted:
		if exitCode != nil && *exitCode == 0 {
			return TaskSucceeded
		}
		return TaskFailed
	default:
		return TaskUnknown
	}
}

// AggregateRetries folds the launcher's independent retry counters into the
// three reported causes. Total always equals the sum of the sub-counters.
func AggregateRetries(s launcher.RetryPolicyState) RetryBreakdown {
	b := RetryBreakdown{
		Platform: s.TransientNormalRetriedCount + s.UnKnownRetriedCount,
		Resource: s.TransientConflictRetriedCount,
		User:     s.NonTransientRetriedCount,
	}
	b.Total = b.Platform + b.Resource + b.User
	return b
}

// terminal reports whether a stable job state is final.
func terminal(s State) bool {
	return s == StateSucceeded || s == StateStopped || s == StateFailed
}
