package service

import (
	"context"
	"fmt"

	"fleetd/internal/model"
	"fleetd/pkg/logger"
)

// DisconnectAnnotation is attached to every task failed by reconciliation
const DisconnectAnnotation = "Worker disconnected unexpectedly"

// ReconcileService seals the gap between the ephemeral presence store and
// the durable task history when a worker connection is lost: the worker
// goes OFFLINE and any task still PENDING for it resolves to FAILED.
type ReconcileService struct {
	presence PresenceStore
	tasks    TaskStore
	locks    *WorkerLocks
}

// NewReconcileService creates a reconciler
func NewReconcileService(presence PresenceStore, tasks TaskStore, locks *WorkerLocks) *ReconcileService {
	return &ReconcileService{
		presence: presence,
		tasks:    tasks,
		locks:    locks,
	}
}

// OnWorkerLost runs once per lost worker connection. No redispatch is
// attempted; the failure is recorded and the worker leaves the roster.
func (s *ReconcileService) OnWorkerLost(ctx context.Context, workerID string) error {
	lock := s.locks.For(workerID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.presence.SetStatus(ctx, workerID, model.WorkerStatusOffline); err != nil {
		return fmt.Errorf("presence store unavailable: %w", err)
	}

	n, err := s.tasks.FailPendingByWorker(ctx, workerID, DisconnectAnnotation)
	if err != nil {
		return fmt.Errorf("task store unavailable: %w", err)
	}
	if n > 0 {
		logger.Warnf("worker %s lost with %d pending task(s), resolved to FAILED", workerID, n)
	}
	return nil
}
