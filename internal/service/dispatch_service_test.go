package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/model"
	"fleetd/pkg/constants"
)

func newDispatchFixture(memberTopics ...string) (*DispatchService, *fakePresence, *fakeTasks, *fakeHub) {
	presence := newFakePresence()
	tasks := newFakeTasks()
	h := newFakeHub(memberTopics...)
	svc := NewDispatchService(presence, tasks, h, NewWorkerLocks())
	return svc, presence, tasks, h
}

func TestDispatch_HappyPath(t *testing.T) {
	svc, presence, tasks, h := newDispatchFixture(constants.WorkerTopic("w1"))
	presence.statuses["w1"] = model.WorkerStatusIdle

	resp, err := svc.Dispatch(context.Background(), "w1", "uname -a", DispatchOptions{Cwd: "/tmp", Timeout: 5000})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, "w1", resp.WorkerID)
	assert.Equal(t, model.TaskStatusPending, resp.Status)

	// worker is reserved and the task record exists before the push
	assert.Equal(t, model.WorkerStatusBusy, presence.status("w1"))
	task := tasks.get(resp.TaskID)
	require.NotNil(t, task)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, "uname -a", task.Command)

	pushed := h.sentTo(constants.WorkerTopic("w1"))
	require.Len(t, pushed, 1)
	env := decodeEnvelope(t, pushed[0])
	assert.Equal(t, constants.MsgTaskRequest, env.Type)

	var req model.TaskRequest
	require.NoError(t, json.Unmarshal(env.Payload, &req))
	assert.Equal(t, resp.TaskID, req.TaskID)
	assert.Equal(t, "uname -a", req.Command)
	assert.Equal(t, "/tmp", req.Cwd)
	assert.Equal(t, 5000, req.Timeout)
}

func TestDispatch_EmptyCommand(t *testing.T) {
	svc, _, tasks, _ := newDispatchFixture(constants.WorkerTopic("w1"))

	_, err := svc.Dispatch(context.Background(), "w1", "", DispatchOptions{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.Empty(t, tasks.created)
}

func TestDispatch_WorkerNotConnected(t *testing.T) {
	svc, presence, tasks, _ := newDispatchFixture()
	presence.statuses["w1"] = model.WorkerStatusIdle

	_, err := svc.Dispatch(context.Background(), "w1", "ls", DispatchOptions{})
	assert.ErrorIs(t, err, ErrWorkerNotConnected)
	assert.Empty(t, tasks.created)
	assert.Equal(t, model.WorkerStatusIdle, presence.status("w1"))
}

func TestDispatch_WorkerWentOffline(t *testing.T) {
	// stale channel membership can outlive a disconnect; the status read
	// under the worker lock must win over the membership check
	svc, presence, tasks, h := newDispatchFixture(constants.WorkerTopic("w1"))
	presence.statuses["w1"] = model.WorkerStatusOffline

	_, err := svc.Dispatch(context.Background(), "w1", "ls", DispatchOptions{})
	assert.ErrorIs(t, err, ErrWorkerNotConnected)
	assert.Empty(t, tasks.created)
	assert.Equal(t, model.WorkerStatusOffline, presence.status("w1"))
	assert.Empty(t, h.sentTo(constants.WorkerTopic("w1")))
}

func TestDispatch_WorkerBusy(t *testing.T) {
	svc, presence, tasks, h := newDispatchFixture(constants.WorkerTopic("w1"))
	presence.statuses["w1"] = model.WorkerStatusBusy

	_, err := svc.Dispatch(context.Background(), "w1", "ls", DispatchOptions{})
	assert.ErrorIs(t, err, ErrWorkerBusy)
	assert.Empty(t, tasks.created)
	assert.Empty(t, h.sentTo(constants.WorkerTopic("w1")))
}

func TestDispatch_PresenceStoreDown(t *testing.T) {
	svc, presence, tasks, _ := newDispatchFixture(constants.WorkerTopic("w1"))
	presence.err = errStoreDown

	_, err := svc.Dispatch(context.Background(), "w1", "ls", DispatchOptions{})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, tasks.created)
}

func TestDispatchAll_FansOutToRoster(t *testing.T) {
	svc, presence, tasks, h := newDispatchFixture(
		constants.WorkerTopic("w1"),
		constants.WorkerTopic("w2"),
	)
	presence.statuses["w1"] = model.WorkerStatusIdle
	presence.statuses["w2"] = model.WorkerStatusIdle

	resp, err := svc.DispatchAll(context.Background(), "date", DispatchOptions{})
	require.NoError(t, err)
	assert.Len(t, resp.TaskIDs, 2)
	assert.Equal(t, model.TaskStatusPending, resp.Status)
	assert.Len(t, tasks.created, 2)
	assert.Len(t, h.sentTo(constants.WorkerTopic("w1")), 1)
	assert.Len(t, h.sentTo(constants.WorkerTopic("w2")), 1)
}

func TestDispatchAll_SkipsFailedWorkers(t *testing.T) {
	// w2 is on the roster but its channel is gone; the fan-out carries on
	svc, presence, tasks, _ := newDispatchFixture(constants.WorkerTopic("w1"))
	presence.statuses["w1"] = model.WorkerStatusIdle
	presence.statuses["w2"] = model.WorkerStatusIdle

	resp, err := svc.DispatchAll(context.Background(), "date", DispatchOptions{})
	require.NoError(t, err)
	assert.Len(t, resp.TaskIDs, 1)
	assert.Len(t, tasks.created, 1)
	assert.Equal(t, "w1", tasks.get(resp.TaskIDs[0]).WorkerID)
}

func TestDispatchAll_EmptyRoster(t *testing.T) {
	svc, _, _, _ := newDispatchFixture()

	_, err := svc.DispatchAll(context.Background(), "date", DispatchOptions{})
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestDispatchAll_AllWorkersFail(t *testing.T) {
	// roster has one worker but no live channel for it
	svc, presence, _, _ := newDispatchFixture()
	presence.statuses["w1"] = model.WorkerStatusIdle

	_, err := svc.DispatchAll(context.Background(), "date", DispatchOptions{})
	assert.ErrorIs(t, err, ErrNoWorkers)
}

func TestDispatchAll_EmptyCommand(t *testing.T) {
	svc, presence, _, _ := newDispatchFixture(constants.WorkerTopic("w1"))
	presence.statuses["w1"] = model.WorkerStatusIdle

	_, err := svc.DispatchAll(context.Background(), "", DispatchOptions{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}
