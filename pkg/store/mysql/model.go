package mysql

import (
	"time"

	"fleetd/internal/model"
)

// Task MySQL model for the tasks table
type Task struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID     string    `gorm:"column:task_id;type:varchar(64);not null;uniqueIndex:idx_task_id_unique" json:"task_id"`
	WorkerID   string    `gorm:"column:worker_id;type:varchar(255);not null;index:idx_worker_id" json:"worker_id"`
	Command    string    `gorm:"column:command;type:text;not null" json:"command"`
	Status     string    `gorm:"column:status;type:varchar(16);not null;index:idx_status" json:"status"`
	ExitCode   *int      `gorm:"column:exit_code" json:"exit_code"`
	DurationMs int64     `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	Output     string    `gorm:"column:output;type:mediumtext" json:"output"`
	Error      string    `gorm:"column:error;type:text" json:"error"`
	CreatedAt  time.Time `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3);index:idx_created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}

// ToDomain converts the row to the domain task
func (t *Task) ToDomain() *model.Task {
	task := &model.Task{
		TaskID:    t.TaskID,
		WorkerID:  t.WorkerID,
		Command:   t.Command,
		Status:    model.TaskStatus(t.Status),
		CreatedAt: t.CreatedAt,
	}
	if task.Status != model.TaskStatusPending {
		task.Result = &model.TaskResult{
			ExitCode:   t.ExitCode,
			Duration:   t.DurationMs,
			FullOutput: t.Output,
			Error:      t.Error,
		}
	}
	return task
}

// FromDomain converts a domain task to a row
func FromDomain(task *model.Task) *Task {
	row := &Task{
		TaskID:    task.TaskID,
		WorkerID:  task.WorkerID,
		Command:   task.Command,
		Status:    string(task.Status),
		CreatedAt: task.CreatedAt,
	}
	if task.Result != nil {
		row.ExitCode = task.Result.ExitCode
		row.DurationMs = task.Result.Duration
		row.Output = task.Result.FullOutput
		row.Error = task.Result.Error
	}
	return row
}
