package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetd/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	workerKeyPrefix     = "worker:"
	workerStatusSuffix  = ":status"
	workerMetricsSuffix = ":metrics"
	workerSetKey        = "workers:known" // Every worker ever seen by a handshake
)

// PresenceRepository manages ephemeral worker liveness and telemetry in
// Redis. Status keys have no TTL (a worker stays on the roster as OFFLINE
// until purged); metrics snapshots expire on their own.
type PresenceRepository struct {
	redis      *redis.Client
	metricsTTL time.Duration
}

// NewPresenceRepository creates a presence repository
func NewPresenceRepository(redisClient *RedisClient, metricsTTL time.Duration) *PresenceRepository {
	return &PresenceRepository{
		redis:      redisClient.GetClient(),
		metricsTTL: metricsTTL,
	}
}

func statusKey(workerID string) string {
	return workerKeyPrefix + workerID + workerStatusSuffix
}

func metricsKey(workerID string) string {
	return workerKeyPrefix + workerID + workerMetricsSuffix
}

// SetStatus writes a worker's liveness status and indexes the worker
func (r *PresenceRepository) SetStatus(ctx context.Context, workerID string, status model.WorkerStatus) error {
	pipe := r.redis.Pipeline()
	pipe.Set(ctx, statusKey(workerID), string(status), 0)
	pipe.SAdd(ctx, workerSetKey, workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set worker status: %w", err)
	}
	return nil
}

// GetStatus returns a worker's status, or "" if the worker has never been seen
func (r *PresenceRepository) GetStatus(ctx context.Context, workerID string) (model.WorkerStatus, error) {
	val, err := r.redis.Get(ctx, statusKey(workerID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get worker status: %w", err)
	}
	return model.WorkerStatus(val), nil
}

// SetMetrics stores a telemetry snapshot with the configured TTL
func (r *PresenceRepository) SetMetrics(ctx context.Context, workerID string, m *model.Metrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	if err := r.redis.Set(ctx, metricsKey(workerID), data, r.metricsTTL).Err(); err != nil {
		return fmt.Errorf("failed to set worker metrics: %w", err)
	}
	return nil
}

// GetMetrics returns the last snapshot, or nil if it has expired
func (r *PresenceRepository) GetMetrics(ctx context.Context, workerID string) (*model.Metrics, error) {
	data, err := r.redis.Get(ctx, metricsKey(workerID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker metrics: %w", err)
	}

	var m model.Metrics
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &m, nil
}

// GetAll returns the visible roster: every known worker that is not
// OFFLINE, with its last metrics snapshot when one is still fresh.
func (r *PresenceRepository) GetAll(ctx context.Context) ([]*model.Worker, error) {
	workerIDs, err := r.redis.SMembers(ctx, workerSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get worker list: %w", err)
	}

	if len(workerIDs) == 0 {
		return []*model.Worker{}, nil
	}

	// One round-trip for all status and metrics keys
	pipe := r.redis.Pipeline()
	statusCmds := make([]*redis.StringCmd, 0, len(workerIDs))
	metricsCmds := make([]*redis.StringCmd, 0, len(workerIDs))
	for _, workerID := range workerIDs {
		statusCmds = append(statusCmds, pipe.Get(ctx, statusKey(workerID)))
		metricsCmds = append(metricsCmds, pipe.Get(ctx, metricsKey(workerID)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	workers := make([]*model.Worker, 0, len(workerIDs))
	for i, workerID := range workerIDs {
		status, err := statusCmds[i].Result()
		if err != nil {
			// Indexed but no status key, treat as never seen
			continue
		}
		if model.WorkerStatus(status) == model.WorkerStatusOffline {
			continue
		}

		worker := &model.Worker{
			WorkerID: workerID,
			Status:   model.WorkerStatus(status),
		}
		if data, err := metricsCmds[i].Result(); err == nil {
			var m model.Metrics
			if err := json.Unmarshal([]byte(data), &m); err == nil {
				worker.Metrics = &m
			}
		}
		workers = append(workers, worker)
	}

	return workers, nil
}

// Purge removes a worker from the roster entirely
func (r *PresenceRepository) Purge(ctx context.Context, workerID string) error {
	pipe := r.redis.Pipeline()
	pipe.Del(ctx, statusKey(workerID))
	pipe.Del(ctx, metricsKey(workerID))
	pipe.SRem(ctx, workerSetKey, workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to purge worker: %w", err)
	}
	return nil
}
