package model

import "encoding/json"

// Envelope wraps every frame on the websocket transport
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals a payload into a framed envelope
func Encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// TaskRequest dispatch message (master -> worker)
type TaskRequest struct {
	TaskID  string `json:"taskId"`
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
	Timeout int    `json:"timeout,omitempty"` // milliseconds
}

// StreamChunk live output fragment (worker -> watchers). Not persisted.
type StreamChunk struct {
	TaskID    string `json:"taskId"`
	Stream    string `json:"stream"` // stdout | stderr
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// TaskResultMessage terminal report (worker -> master) and the
// TASK_FINISHED notice fanned out to watchers
type TaskResultMessage struct {
	TaskID   string `json:"taskId"`
	ExitCode *int   `json:"exitCode"`
	Output   string `json:"output"`
	Error    string `json:"error"`
	Duration int64  `json:"duration"` // milliseconds
}

// WatchTask subscription request (any connection -> master)
type WatchTask struct {
	TaskID string `json:"taskId"`
}
