package service

import "sync"

// WorkerLocks serializes status transitions per worker. Dispatch,
// completion and reconciliation all take the same lock so a worker's
// BUSY/IDLE/OFFLINE flips never interleave.
type WorkerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWorkerLocks creates an empty lock table
func NewWorkerLocks() *WorkerLocks {
	return &WorkerLocks{locks: make(map[string]*sync.Mutex)}
}

// For returns the lock owning workerID's status transitions
func (w *WorkerLocks) For(workerID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[workerID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[workerID] = lock
	}
	return lock
}
