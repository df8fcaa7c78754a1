package constants

const (
	topicWorkerPrefix = "worker:"
	topicTaskPrefix   = "task:"
)

// WorkerTopic returns the private channel for a worker connection
func WorkerTopic(workerID string) string {
	return topicWorkerPrefix + workerID
}

// TaskTopic returns the broadcast channel for a task's watchers
func TaskTopic(taskID string) string {
	return topicTaskPrefix + taskID
}
