package service

import (
	"context"
	"fmt"

	"fleetd/internal/model"
	"fleetd/pkg/constants"
	"fleetd/pkg/logger"
)

// StreamService relays live output between a worker connection and
// everyone watching its task, and records terminal results.
type StreamService struct {
	presence PresenceStore
	tasks    TaskStore
	hub      Broadcaster
	locks    *WorkerLocks
}

// NewStreamService creates a stream relay
func NewStreamService(presence PresenceStore, tasks TaskStore, hub Broadcaster, locks *WorkerLocks) *StreamService {
	return &StreamService{
		presence: presence,
		tasks:    tasks,
		hub:      hub,
		locks:    locks,
	}
}

// RelayChunk forwards an output chunk to the task's watchers and to the
// global audience. The double delivery is deliberate: an observer that has
// not issued watch-task yet still sees fast-finishing tasks.
func (s *StreamService) RelayChunk(chunk *model.StreamChunk) {
	msg, err := model.Encode(constants.MsgStreamChunk, chunk)
	if err != nil {
		logger.Errorf("failed to encode stream chunk for task %s: %v", chunk.TaskID, err)
		return
	}
	s.hub.Send(constants.TaskTopic(chunk.TaskID), msg)
	s.hub.Broadcast(msg)
}

// Complete records a worker-reported terminal result: the worker goes back
// to IDLE, the task record flips to its terminal status exactly once, and a
// task-finished notice goes out to watchers and the global audience.
// A duplicate report for an already-terminal task is a no-op write.
func (s *StreamService) Complete(ctx context.Context, workerID string, outcome model.TaskStatus, report *model.TaskResultMessage) error {
	lock := s.locks.For(workerID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.presence.SetStatus(ctx, workerID, model.WorkerStatusIdle); err != nil {
		return fmt.Errorf("presence store unavailable: %w", err)
	}

	res := &model.TaskResult{
		ExitCode:   report.ExitCode,
		Duration:   report.Duration,
		FullOutput: report.Output,
		Error:      report.Error,
	}
	if err := s.tasks.Complete(ctx, report.TaskID, outcome, res); err != nil {
		return fmt.Errorf("task store unavailable: %w", err)
	}

	msg, err := model.Encode(constants.MsgTaskFinished, report)
	if err != nil {
		return err
	}
	s.hub.Send(constants.TaskTopic(report.TaskID), msg)
	s.hub.Broadcast(msg)

	logger.Infof("task %s finished as %s (duration: %dms)", report.TaskID, outcome, report.Duration)
	return nil
}
