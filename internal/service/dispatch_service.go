package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetd/internal/model"
	"fleetd/pkg/constants"
	"fleetd/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrEmptyCommand       = errors.New("command is required")
	ErrWorkerNotConnected = errors.New("worker not connected")
	ErrWorkerBusy         = errors.New("worker already has a task in flight")
	ErrNoWorkers          = errors.New("no available workers")
)

// DispatchOptions optional execution parameters forwarded to the worker
type DispatchOptions struct {
	Cwd     string
	Timeout int // milliseconds, 0 means worker default
}

// DispatchService creates task records and pushes task requests to worker
// channels. A worker holds at most one PENDING task: dispatching to a BUSY
// worker is rejected rather than silently overwriting its current task.
type DispatchService struct {
	presence PresenceStore
	tasks    TaskStore
	hub      Broadcaster
	locks    *WorkerLocks
}

// NewDispatchService creates a dispatch service
func NewDispatchService(presence PresenceStore, tasks TaskStore, hub Broadcaster, locks *WorkerLocks) *DispatchService {
	return &DispatchService{
		presence: presence,
		tasks:    tasks,
		hub:      hub,
		locks:    locks,
	}
}

// Dispatch sends one command to one worker. The task record is PENDING when
// this returns; the outcome arrives later through the stream relay.
func (s *DispatchService) Dispatch(ctx context.Context, workerID, command string, opts DispatchOptions) (*model.ExecuteResponse, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}
	if !s.hub.HasMembers(constants.WorkerTopic(workerID)) {
		return nil, ErrWorkerNotConnected
	}

	lock := s.locks.For(workerID)
	lock.Lock()
	defer lock.Unlock()

	status, err := s.presence.GetStatus(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("presence store unavailable: %w", err)
	}
	// The membership check above runs before the lock; the reconciler may
	// have flipped the worker OFFLINE in between. The status read under the
	// lock is authoritative.
	if status == model.WorkerStatusOffline {
		return nil, ErrWorkerNotConnected
	}
	if status == model.WorkerStatusBusy {
		return nil, ErrWorkerBusy
	}

	taskID := uuid.New().String()

	if err := s.presence.SetStatus(ctx, workerID, model.WorkerStatusBusy); err != nil {
		return nil, fmt.Errorf("presence store unavailable: %w", err)
	}

	task := &model.Task{
		TaskID:    taskID,
		WorkerID:  workerID,
		Command:   command,
		Status:    model.TaskStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("task store unavailable: %w", err)
	}

	msg, err := model.Encode(constants.MsgTaskRequest, model.TaskRequest{
		TaskID:  taskID,
		Command: command,
		Cwd:     opts.Cwd,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	s.hub.Send(constants.WorkerTopic(workerID), msg)

	logger.Infof("task %s dispatched to %s: %s", taskID, workerID, command)

	return &model.ExecuteResponse{
		TaskID:   taskID,
		WorkerID: workerID,
		Status:   model.TaskStatusPending,
	}, nil
}

// DispatchAll fans one command out to every worker on the visible roster.
// Per-worker failures are logged and skipped; tasks already dispatched stay
// PENDING (at-least-attempted, not atomic).
func (s *DispatchService) DispatchAll(ctx context.Context, command string, opts DispatchOptions) (*model.ExecuteAllResponse, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}

	workers, err := s.presence.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence store unavailable: %w", err)
	}
	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}

	taskIDs := make([]string, 0, len(workers))
	for _, worker := range workers {
		resp, err := s.Dispatch(ctx, worker.WorkerID, command, opts)
		if err != nil {
			logger.Warnf("dispatch to %s skipped: %v", worker.WorkerID, err)
			continue
		}
		taskIDs = append(taskIDs, resp.TaskID)
	}
	if len(taskIDs) == 0 {
		return nil, ErrNoWorkers
	}

	return &model.ExecuteAllResponse{
		TaskIDs: taskIDs,
		Status:  model.TaskStatusPending,
	}, nil
}
