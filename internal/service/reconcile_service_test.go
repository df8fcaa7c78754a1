package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/model"
)

func newReconcileFixture() (*ReconcileService, *fakePresence, *fakeTasks) {
	presence := newFakePresence()
	tasks := newFakeTasks()
	svc := NewReconcileService(presence, tasks, NewWorkerLocks())
	return svc, presence, tasks
}

func TestOnWorkerLost_FailsPendingTask(t *testing.T) {
	svc, presence, tasks := newReconcileFixture()
	presence.statuses["w1"] = model.WorkerStatusBusy
	require.NoError(t, tasks.Create(context.Background(), &model.Task{
		TaskID: "t1", WorkerID: "w1", Command: "sleep 60", Status: model.TaskStatusPending,
	}))

	require.NoError(t, svc.OnWorkerLost(context.Background(), "w1"))

	assert.Equal(t, model.WorkerStatusOffline, presence.status("w1"))
	task := tasks.get("t1")
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	require.NotNil(t, task.Result)
	assert.Equal(t, DisconnectAnnotation, task.Result.Error)
}

func TestOnWorkerLost_MultiplePendingTasks(t *testing.T) {
	svc, presence, tasks := newReconcileFixture()
	presence.statuses["w1"] = model.WorkerStatusBusy
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, tasks.Create(context.Background(), &model.Task{
			TaskID: id, WorkerID: "w1", Command: "sleep 60", Status: model.TaskStatusPending,
		}))
	}

	require.NoError(t, svc.OnWorkerLost(context.Background(), "w1"))

	for _, id := range []string{"t1", "t2", "t3"} {
		assert.Equal(t, model.TaskStatusFailed, tasks.get(id).Status)
	}
}

func TestOnWorkerLost_LeavesTerminalTasksAlone(t *testing.T) {
	svc, presence, tasks := newReconcileFixture()
	presence.statuses["w1"] = model.WorkerStatusIdle
	require.NoError(t, tasks.Create(context.Background(), &model.Task{
		TaskID: "done", WorkerID: "w1", Command: "ls", Status: model.TaskStatusPending,
	}))
	code := 0
	require.NoError(t, tasks.Complete(context.Background(), "done", model.TaskStatusCompleted, &model.TaskResult{ExitCode: &code, FullOutput: "ok"}))

	require.NoError(t, svc.OnWorkerLost(context.Background(), "w1"))

	task := tasks.get("done")
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, "ok", task.Result.FullOutput)
}

func TestOnWorkerLost_NoPendingTasks(t *testing.T) {
	svc, presence, _ := newReconcileFixture()
	presence.statuses["w1"] = model.WorkerStatusIdle

	require.NoError(t, svc.OnWorkerLost(context.Background(), "w1"))
	assert.Equal(t, model.WorkerStatusOffline, presence.status("w1"))
}

func TestOnWorkerLost_OtherWorkersUntouched(t *testing.T) {
	svc, presence, tasks := newReconcileFixture()
	presence.statuses["w1"] = model.WorkerStatusBusy
	presence.statuses["w2"] = model.WorkerStatusBusy
	require.NoError(t, tasks.Create(context.Background(), &model.Task{
		TaskID: "t1", WorkerID: "w1", Command: "sleep 60", Status: model.TaskStatusPending,
	}))
	require.NoError(t, tasks.Create(context.Background(), &model.Task{
		TaskID: "t2", WorkerID: "w2", Command: "sleep 60", Status: model.TaskStatusPending,
	}))

	require.NoError(t, svc.OnWorkerLost(context.Background(), "w1"))

	assert.Equal(t, model.TaskStatusFailed, tasks.get("t1").Status)
	assert.Equal(t, model.TaskStatusPending, tasks.get("t2").Status)
	assert.Equal(t, model.WorkerStatusBusy, presence.status("w2"))
}
