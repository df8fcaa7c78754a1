package service

import (
	"context"
	"fmt"

	"fleetd/internal/model"
	"fleetd/pkg/constants"
	"fleetd/pkg/logger"
)

// WorkerService maintains the worker roster: handshake registration,
// heartbeat telemetry and the visible worker list.
type WorkerService struct {
	presence PresenceStore
	tasks    TaskStore
	hub      Broadcaster
}

// NewWorkerService creates a worker service
func NewWorkerService(presence PresenceStore, tasks TaskStore, hub Broadcaster) *WorkerService {
	return &WorkerService{
		presence: presence,
		tasks:    tasks,
		hub:      hub,
	}
}

// HandleConnect registers a freshly authenticated worker as IDLE
func (s *WorkerService) HandleConnect(ctx context.Context, workerID string) error {
	if err := s.presence.SetStatus(ctx, workerID, model.WorkerStatusIdle); err != nil {
		return fmt.Errorf("presence store unavailable: %w", err)
	}
	return nil
}

// HandleHeartbeat stores the telemetry snapshot and rebroadcasts it to
// observers. Store failures are logged and dropped, they never take the
// connection down.
func (s *WorkerService) HandleHeartbeat(ctx context.Context, hb *model.Heartbeat) {
	logger.Debugf("heartbeat from %s: cpu %.1f%%, mem %.1f%% free", hb.WorkerID, hb.CPULoad, hb.FreeMemPercentage)

	if err := s.presence.SetMetrics(ctx, hb.WorkerID, &hb.Metrics); err != nil {
		logger.Errorf("failed to store metrics for %s: %v", hb.WorkerID, err)
	}

	msg, err := model.Encode(constants.MsgWorkerHeartbeat, hb)
	if err != nil {
		logger.Errorf("failed to encode heartbeat for %s: %v", hb.WorkerID, err)
		return
	}
	s.hub.Broadcast(msg)
}

// ListWorkers returns the visible roster (OFFLINE workers excluded)
func (s *WorkerService) ListWorkers(ctx context.Context) ([]*model.Worker, error) {
	workers, err := s.presence.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence store unavailable: %w", err)
	}
	return workers, nil
}

// History returns the task history, newest first, optionally filtered by
// worker
func (s *WorkerService) History(ctx context.Context, workerID string) ([]*model.Task, error) {
	var (
		tasks []*model.Task
		err   error
	)
	if workerID == "" {
		tasks, err = s.tasks.List(ctx)
	} else {
		tasks, err = s.tasks.ListByWorker(ctx, workerID)
	}
	if err != nil {
		return nil, fmt.Errorf("task store unavailable: %w", err)
	}
	return tasks, nil
}
