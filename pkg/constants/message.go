package constants

// Wire message types
const (
	MsgHeartbeat       = "HEARTBEAT"
	MsgWatchTask       = "WATCH_TASK"
	MsgTaskRequest     = "TASK_REQUEST"
	MsgStreamChunk     = "STREAM_CHUNK"
	MsgTaskComplete    = "TASK_COMPLETE"
	MsgTaskFailed      = "TASK_FAILED"
	MsgTaskFinished    = "TASK_FINISHED"
	MsgWorkerHeartbeat = "WORKER_HEARTBEAT"
)
