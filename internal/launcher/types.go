// Package launcher provides the client and wire types for the framework
// launcher REST API, the external orchestration service that runs a job's
// containers and reports aggregate status.
package launcher

// Framework states reported by the launcher. The pre-running states map to
// a waiting job; the completing/completed states carry an exit code.
const (
	StateFrameworkWaiting                 = "FRAMEWORK_WAITING"
	StateApplicationCreated               = "APPLICATION_CREATED"
	StateApplicationLaunched              = "APPLICATION_LAUNCHED"
	StateApplicationWaiting               = "APPLICATION_WAITING"
	StateApplicationRunning               = "APPLICATION_RUNNING"
	StateApplicationRetrievingDiagnostics = "APPLICATION_RETRIEVING_DIAGNOSTICS"
	StateApplicationCompleted             = "APPLICATION_COMPLETED"
	StateFrameworkCompleted               = "FRAMEWORK_COMPLETED"
)

// Task states reported by the launcher.
const (
	TaskStateWaiting            = "TASK_WAITING"
	TaskStateContainerRequested = "CONTAINER_REQUESTED"
	TaskStateContainerAllocated = "CONTAINER_ALLOCATED"
	TaskStateContainerRunning   = "CONTAINER_RUNNING"
	TaskStateContainerCompleted = "CONTAINER_COMPLETED"
	TaskStateCompleted          = "TASK_COMPLETED"
)

// Execution types accepted by the launcher's executionType endpoint.
const (
	ExecutionStart = "START"
	ExecutionStop  = "STOP"
)

// SummarizedFrameworkInfo is one row of the framework list response.
type SummarizedFrameworkInfo struct {
	FrameworkName               string           `json:"frameworkName"`
	UserName                    string           `json:"userName"`
	Queue                       string           `json:"queue"`
	FrameworkState              string           `json:"frameworkState"`
	FrameworkRetryPolicyState   RetryPolicyState `json:"frameworkRetryPolicyState"`
	FirstRequestTimestamp       int64            `json:"firstRequestTimestamp"`
	FrameworkCompletedTimestamp int64            `json:"frameworkCompletedTimestamp"`
	ApplicationExitCode         *int             `json:"applicationExitCode"`
}

// ListResponse is the body of GET /v1/Frameworks.
type ListResponse struct {
	SummarizedFrameworkInfos []SummarizedFrameworkInfo `json:"summarizedFrameworkInfos"`
}

// FrameworkInfo is the full framework status+request document,
// the body of GET /v1/Frameworks/{name}.
type FrameworkInfo struct {
	Name                       string                     `json:"name"`
	AggregatedFrameworkRequest AggregatedFrameworkRequest `json:"aggregatedFrameworkRequest"`
	AggregatedFrameworkStatus  AggregatedFrameworkStatus  `json:"aggregatedFrameworkStatus"`
}

type AggregatedFrameworkRequest struct {
	FrameworkRequest FrameworkRequest `json:"frameworkRequest"`
}

type FrameworkRequest struct {
	FrameworkDescriptor FrameworkDescriptor `json:"frameworkDescriptor"`
}

// FrameworkDescriptor is the subset of the submitted descriptor the adapter
// reads back: ownership and placement.
type FrameworkDescriptor struct {
	User struct {
		Name string `json:"name"`
	} `json:"user"`
	PlatformSpecificParameters struct {
		Queue           string `json:"queue"`
		TaskNodeGpuType string `json:"taskNodeGpuType"`
	} `json:"platformSpecificParameters"`
}

type AggregatedFrameworkStatus struct {
	FrameworkStatus             FrameworkStatus              `json:"frameworkStatus"`
	AggregatedApplicationStatus *AggregatedApplicationStatus `json:"aggregatedApplicationStatus"`
}

type FrameworkStatus struct {
	FrameworkState              string           `json:"frameworkState"`
	FrameworkRetryPolicyState   RetryPolicyState `json:"frameworkRetryPolicyState"`
	FrameworkCreatedTimestamp   int64            `json:"frameworkCreatedTimestamp"`
	FrameworkCompletedTimestamp int64            `json:"frameworkCompletedTimestamp"`
}

// RetryPolicyState carries the launcher's independent retry counters.
type RetryPolicyState struct {
	TransientNormalRetriedCount   int `json:"transientNormalRetriedCount"`
	TransientConflictRetriedCount int `json:"transientConflictRetriedCount"`
	NonTransientRetriedCount      int `json:"nonTransientRetriedCount"`
	UnKnownRetriedCount           int `json:"unKnownRetriedCount"`
}

type AggregatedApplicationStatus struct {
	ApplicationStatus          ApplicationStatus         `json:"applicationStatus"`
	AggregatedTaskRoleStatuses map[string]TaskRoleStatus `json:"aggregatedTaskRoleStatuses"`
}

type ApplicationStatus struct {
	ApplicationID                      string `json:"applicationId"`
	ApplicationLaunchedTimestamp       int64  `json:"applicationLaunchedTimestamp"`
	ApplicationExitCode                *int   `json:"applicationExitCode"`
	ApplicationExitDiagnostics         string `json:"applicationExitDiagnostics"`
	ApplicationExitTriggerMessage      string `json:"applicationExitTriggerMessage"`
	ApplicationExitTriggerTaskRoleName string `json:"applicationExitTriggerTaskRoleName"`
	ApplicationExitTriggerTaskIndex    *int   `json:"applicationExitTriggerTaskIndex"`
	TrackingURL                        string `json:"trackingUrl"`
}

type TaskRoleStatus struct {
	TaskStatuses TaskStatuses `json:"taskStatuses"`
}

type TaskStatuses struct {
	TaskStatusArray []TaskStatus `json:"taskStatusArray"`
}

// TaskStatus is the launcher's per-task view.
type TaskStatus struct {
	TaskIndex         int               `json:"taskIndex"`
	TaskState         string            `json:"taskState"`
	ContainerID       string            `json:"containerId"`
	ContainerIP       string            `json:"containerIp"`
	ContainerPorts    map[string]string `json:"containerPorts"`
	ContainerGpus     string            `json:"containerGpus"`
	ContainerExitCode *int              `json:"containerExitCode"`
}
