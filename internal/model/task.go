package model

import "time"

// TaskStatus task status
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

func (s TaskStatus) String() string {
	return string(s)
}

// TaskResult terminal outcome of a task
type TaskResult struct {
	// ExitCode is nil when the process never spawned
	ExitCode   *int   `json:"exitCode"`
	Duration   int64  `json:"duration"` // milliseconds
	FullOutput string `json:"fullOutput"`
	Error      string `json:"error,omitempty"`
}

// Task dispatched command record
type Task struct {
	TaskID    string      `json:"taskId"`
	WorkerID  string      `json:"workerId"`
	Command   string      `json:"command"`
	Status    TaskStatus  `json:"status"`
	Result    *TaskResult `json:"result,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ExecuteRequest dispatch request body
type ExecuteRequest struct {
	WorkerID string `json:"workerId"`
	Command  string `json:"command"`
	Cwd      string `json:"cwd,omitempty"`
	Timeout  int    `json:"timeout,omitempty"` // milliseconds
}

// ExecuteResponse dispatch response
type ExecuteResponse struct {
	TaskID   string     `json:"taskId"`
	WorkerID string     `json:"workerId"`
	Status   TaskStatus `json:"status"`
}

// ExecuteAllRequest fan-out dispatch request body
type ExecuteAllRequest struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // milliseconds
}

// ExecuteAllResponse fan-out dispatch response
type ExecuteAllResponse struct {
	TaskIDs []string   `json:"taskIds"`
	Status  TaskStatus `json:"status"`
}
