package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fleetd/internal/model"
)

// fakePresence is an in-memory PresenceStore
type fakePresence struct {
	mu       sync.Mutex
	statuses map[string]model.WorkerStatus
	metrics  map[string]*model.Metrics
	err      error
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		statuses: make(map[string]model.WorkerStatus),
		metrics:  make(map[string]*model.Metrics),
	}
}

func (f *fakePresence) SetStatus(_ context.Context, workerID string, status model.WorkerStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses[workerID] = status
	return nil
}

func (f *fakePresence) GetStatus(_ context.Context, workerID string) (model.WorkerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.statuses[workerID], nil
}

func (f *fakePresence) SetMetrics(_ context.Context, workerID string, m *model.Metrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.metrics[workerID] = m
	return nil
}

func (f *fakePresence) GetAll(_ context.Context) ([]*model.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	workers := make([]*model.Worker, 0, len(f.statuses))
	for id, status := range f.statuses {
		if status == model.WorkerStatusOffline {
			continue
		}
		workers = append(workers, &model.Worker{WorkerID: id, Status: status, Metrics: f.metrics[id]})
	}
	return workers, nil
}

func (f *fakePresence) status(workerID string) model.WorkerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[workerID]
}

// fakeTasks is an in-memory TaskStore with the same terminal-once write
// rule as the MySQL repository
type fakeTasks struct {
	mu      sync.Mutex
	byID    map[string]*model.Task
	created []string
	err     error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{byID: make(map[string]*model.Task)}
}

func (f *fakeTasks) Create(_ context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *task
	f.byID[task.TaskID] = &cp
	f.created = append(f.created, task.TaskID)
	return nil
}

func (f *fakeTasks) Complete(_ context.Context, taskID string, status model.TaskStatus, res *model.TaskResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	task, ok := f.byID[taskID]
	if !ok || task.Status != model.TaskStatusPending {
		return nil
	}
	task.Status = status
	task.Result = res
	return nil
}

func (f *fakeTasks) FailPendingByWorker(_ context.Context, workerID, annotation string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, task := range f.byID {
		if task.WorkerID == workerID && task.Status == model.TaskStatusPending {
			task.Status = model.TaskStatusFailed
			task.Result = &model.TaskResult{Error: annotation}
			n++
		}
	}
	return n, nil
}

func (f *fakeTasks) List(_ context.Context) ([]*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	tasks := make([]*model.Task, 0, len(f.byID))
	for _, task := range f.byID {
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (f *fakeTasks) ListByWorker(_ context.Context, workerID string) ([]*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var tasks []*model.Task
	for _, task := range f.byID {
		if task.WorkerID == workerID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (f *fakeTasks) get(taskID string) *model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[taskID]
}

// fakeHub records deliveries instead of pushing them onto connections
type fakeHub struct {
	mu         sync.Mutex
	members    map[string]bool
	sent       map[string][][]byte
	broadcasts [][]byte
}

func newFakeHub(memberTopics ...string) *fakeHub {
	h := &fakeHub{
		members: make(map[string]bool),
		sent:    make(map[string][][]byte),
	}
	for _, topic := range memberTopics {
		h.members[topic] = true
	}
	return h
}

func (f *fakeHub) Send(topic string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[topic] = append(f.sent[topic], msg)
}

func (f *fakeHub) Broadcast(msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, msg)
}

func (f *fakeHub) HasMembers(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[topic]
}

func (f *fakeHub) sentTo(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[topic]
}

func (f *fakeHub) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

func decodeEnvelope(t *testing.T, raw []byte) model.Envelope {
	t.Helper()
	var env model.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

var errStoreDown = errors.New("store down")
