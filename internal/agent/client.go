package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"fleetd/internal/auth"
	"fleetd/internal/model"
	"fleetd/pkg/constants"
	"fleetd/pkg/logger"

	"github.com/gorilla/websocket"
)

const redialDelay = 5 * time.Second

// Agent is the worker-side client: it holds one authenticated connection
// to the master, reports telemetry on a timer and executes task requests
// as they arrive.
type Agent struct {
	masterURL         string // ws://host:port
	workerID          string
	verifier          *auth.Verifier
	heartbeatInterval time.Duration
	executor          *Executor

	mu sync.Mutex // serializes writes to the connection
	ws *websocket.Conn
}

// New creates an agent
func New(masterURL, workerID, secret string, heartbeatInterval, defaultTimeout time.Duration) *Agent {
	return &Agent{
		masterURL:         masterURL,
		workerID:          workerID,
		verifier:          auth.NewVerifier(secret, 0),
		heartbeatInterval: heartbeatInterval,
		executor:          NewExecutor(defaultTimeout),
	}
}

// Run connects and serves until ctx is cancelled, redialing after drops
func (a *Agent) Run(ctx context.Context) {
	for {
		if err := a.session(ctx); err != nil {
			logger.Warnf("session ended: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(redialDelay):
		}
	}
}

func (a *Agent) session(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, a.dialURL(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	a.mu.Lock()
	a.ws = ws
	a.mu.Unlock()

	logger.Infof("connected to master as %s", a.workerID)

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.heartbeatLoop(hbCtx)

	for {
		var env model.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return err
		}
		if env.Type != constants.MsgTaskRequest {
			continue
		}
		var req model.TaskRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			logger.Warnf("malformed task request: %v", err)
			continue
		}
		go a.runTask(&req)
	}
}

// dialURL builds the handshake URL with a fresh signed credential
func (a *Agent) dialURL() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	q := url.Values{}
	q.Set("workerId", a.workerID)
	q.Set("timestamp", ts)
	q.Set("signature", a.verifier.Sign(a.workerID, ts))
	return a.masterURL + "/ws?" + q.Encode()
}

func (a *Agent) write(msgType string, payload interface{}) error {
	data, err := model.Encode(msgType, payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ws == nil {
		return errors.New("not connected")
	}
	return a.ws.WriteMessage(websocket.TextMessage, data)
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.heartbeatInterval)
	defer ticker.Stop()
	for {
		hb := model.Heartbeat{WorkerID: a.workerID, Metrics: *Snapshot()}
		if err := a.write(constants.MsgHeartbeat, hb); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runTask executes one task request and reports its chunks and single
// terminal result back to the master.
func (a *Agent) runTask(req *model.TaskRequest) {
	logger.Infof("executing task %s: %s", req.TaskID, req.Command)

	chunks, result := a.executor.Execute(req)
	for chunk := range chunks {
		if err := a.write(constants.MsgStreamChunk, chunk); err != nil {
			logger.Warnf("failed to relay chunk for task %s: %v", req.TaskID, err)
		}
	}

	report := <-result
	msgType := constants.MsgTaskFailed
	if report.ExitCode != nil && *report.ExitCode == 0 {
		msgType = constants.MsgTaskComplete
	}
	if err := a.write(msgType, report); err != nil {
		logger.Errorf("failed to report result for task %s: %v", req.TaskID, err)
	}
}
