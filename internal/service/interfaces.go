package service

import (
	"context"

	"fleetd/internal/hub"
	"fleetd/internal/model"
	mysqlstore "fleetd/pkg/store/mysql"
	redisstore "fleetd/pkg/store/redis"
)

// PresenceStore is the ephemeral liveness/telemetry registry
type PresenceStore interface {
	SetStatus(ctx context.Context, workerID string, status model.WorkerStatus) error
	GetStatus(ctx context.Context, workerID string) (model.WorkerStatus, error)
	SetMetrics(ctx context.Context, workerID string, m *model.Metrics) error
	GetAll(ctx context.Context) ([]*model.Worker, error)
}

// TaskStore is the durable task history
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Complete(ctx context.Context, taskID string, status model.TaskStatus, res *model.TaskResult) error
	FailPendingByWorker(ctx context.Context, workerID, annotation string) (int64, error)
	List(ctx context.Context) ([]*model.Task, error)
	ListByWorker(ctx context.Context, workerID string) ([]*model.Task, error)
}

// Broadcaster is the directed/broadcast messaging surface of the hub
type Broadcaster interface {
	Send(topic string, msg []byte)
	Broadcast(msg []byte)
	HasMembers(topic string) bool
}

// compile-time assertions

var (
	_ PresenceStore = (*redisstore.PresenceRepository)(nil)
	_ TaskStore     = (*mysqlstore.TaskRepository)(nil)
	_ Broadcaster   = (*hub.Hub)(nil)
)
