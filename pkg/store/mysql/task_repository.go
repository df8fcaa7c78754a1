package mysql

import (
	"context"
	"fmt"

	"fleetd/internal/model"

	"gorm.io/gorm"
)

// TaskRepository handles task persistence in MySQL
type TaskRepository struct {
	ds *Datastore
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(ds *Datastore) *TaskRepository {
	return &TaskRepository{ds: ds}
}

// Create inserts a new task record
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.ds.DB(ctx).Create(FromDomain(task)).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get retrieves a task by its public ID, or nil when unknown
func (r *TaskRepository) Get(ctx context.Context, taskID string) (*model.Task, error) {
	var row Task
	err := r.ds.DB(ctx).Where("task_id = ?", taskID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return row.ToDomain(), nil
}

// Complete moves a PENDING task to a terminal status with its result.
// The status filter makes the transition CAS-like: a task already in a
// terminal state is left untouched and the call is a no-op.
func (r *TaskRepository) Complete(ctx context.Context, taskID string, status model.TaskStatus, res *model.TaskResult) error {
	updates := map[string]interface{}{
		"status":      string(status),
		"exit_code":   res.ExitCode,
		"duration_ms": res.Duration,
		"output":      res.FullOutput,
		"error":       res.Error,
	}
	result := r.ds.DB(ctx).Model(&Task{}).
		Where("task_id = ? AND status = ?", taskID, string(model.TaskStatusPending)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", result.Error)
	}
	return nil
}

// FailPendingByWorker marks every PENDING task of a worker FAILED with the
// given annotation. Returns the number of tasks resolved.
func (r *TaskRepository) FailPendingByWorker(ctx context.Context, workerID, annotation string) (int64, error) {
	result := r.ds.DB(ctx).Model(&Task{}).
		Where("worker_id = ? AND status = ?", workerID, string(model.TaskStatusPending)).
		Updates(map[string]interface{}{
			"status": string(model.TaskStatusFailed),
			"error":  annotation,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail pending tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// List returns every task, newest first
func (r *TaskRepository) List(ctx context.Context) ([]*model.Task, error) {
	var rows []*Task
	err := r.ds.DB(ctx).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return toDomainList(rows), nil
}

// ListByWorker returns a worker's tasks, newest first
func (r *TaskRepository) ListByWorker(ctx context.Context, workerID string) ([]*model.Task, error) {
	var rows []*Task
	err := r.ds.DB(ctx).Where("worker_id = ?", workerID).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list worker tasks: %w", err)
	}
	return toDomainList(rows), nil
}

func toDomainList(rows []*Task) []*model.Task {
	tasks := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.ToDomain())
	}
	return tasks
}
