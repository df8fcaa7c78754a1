package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"fleetd/internal/auth"
	"fleetd/internal/hub"
	"fleetd/internal/model"
	"fleetd/internal/service"
	"fleetd/pkg/constants"
	"fleetd/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins, production should use stricter checks
	},
}

// SocketHandler owns the websocket entry point: handshake authentication,
// the per-connection read loop and message routing into the services.
type SocketHandler struct {
	hub          *hub.Hub
	verifier     *auth.Verifier
	workerSvc    *service.WorkerService
	streamSvc    *service.StreamService
	reconcileSvc *service.ReconcileService
}

// NewSocketHandler creates a socket handler
func NewSocketHandler(h *hub.Hub, verifier *auth.Verifier, workerSvc *service.WorkerService, streamSvc *service.StreamService, reconcileSvc *service.ReconcileService) *SocketHandler {
	return &SocketHandler{
		hub:          h,
		verifier:     verifier,
		workerSvc:    workerSvc,
		streamSvc:    streamSvc,
		reconcileSvc: reconcileSvc,
	}
}

// Serve upgrades a connection. A connection presenting a workerId must
// carry a valid signature and is joined to its private worker channel; a
// connection without one is a passive observer receiving broadcasts only.
// Invalid credentials terminate the connection before any state mutation.
func (h *SocketHandler) Serve(c *gin.Context) {
	workerID := c.Query("workerId")
	if workerID != "" {
		if err := h.verifier.Verify(workerID, c.Query("timestamp"), c.Query("signature")); err != nil {
			logger.Warnf("connection refused for %s: %v", workerID, err)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("failed to upgrade to websocket: %v", err)
		return
	}

	conn := hub.NewConn(ws, workerID)
	h.hub.Register(conn)

	if workerID != "" {
		h.hub.Join(conn, constants.WorkerTopic(workerID))
		if err := h.workerSvc.HandleConnect(c.Request.Context(), workerID); err != nil {
			// A worker with a channel but no status entry would be
			// dispatchable yet invisible on the roster. Drop the
			// connection and let the agent's redial loop retry.
			logger.Errorf("failed to register worker %s, closing connection: %v", workerID, err)
			h.hub.Unregister(conn)
			return
		}
		logger.Infof("connection established: %s connected", workerID)
	} else {
		logger.Infof("observer client connected")
	}

	go h.readLoop(conn)
}

func (h *SocketHandler) readLoop(c *hub.Conn) {
	defer func() {
		h.hub.Unregister(c)
		if c.WorkerID != "" {
			logger.Infof("connection ended: %s disconnected", c.WorkerID)
			if err := h.reconcileSvc.OnWorkerLost(context.Background(), c.WorkerID); err != nil {
				logger.Errorf("reconciliation for %s failed: %v", c.WorkerID, err)
			}
		}
	}()

	for {
		data, err := c.ReadMessage()
		if err != nil {
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warnf("malformed frame from %q: %v", c.WorkerID, err)
			continue
		}
		h.handle(c, &env)
	}
}

func (h *SocketHandler) handle(c *hub.Conn, env *model.Envelope) {
	ctx := context.Background()

	switch env.Type {
	case constants.MsgHeartbeat:
		var hb model.Heartbeat
		if err := json.Unmarshal(env.Payload, &hb); err != nil {
			logger.Warnf("malformed heartbeat from %q: %v", c.WorkerID, err)
			return
		}
		h.workerSvc.HandleHeartbeat(ctx, &hb)

	case constants.MsgWatchTask:
		var watch model.WatchTask
		if err := json.Unmarshal(env.Payload, &watch); err != nil || watch.TaskID == "" {
			return
		}
		h.hub.Join(c, constants.TaskTopic(watch.TaskID))
		logger.Debugf("connection %q is now watching task %s", c.WorkerID, watch.TaskID)

	case constants.MsgStreamChunk:
		var chunk model.StreamChunk
		if err := json.Unmarshal(env.Payload, &chunk); err != nil {
			logger.Warnf("malformed stream chunk from %q: %v", c.WorkerID, err)
			return
		}
		h.streamSvc.RelayChunk(&chunk)

	case constants.MsgTaskComplete, constants.MsgTaskFailed:
		if c.WorkerID == "" {
			// Observers cannot report results
			return
		}
		var report model.TaskResultMessage
		if err := json.Unmarshal(env.Payload, &report); err != nil {
			logger.Warnf("malformed task report from %s: %v", c.WorkerID, err)
			return
		}
		outcome := model.TaskStatusCompleted
		if env.Type == constants.MsgTaskFailed {
			outcome = model.TaskStatusFailed
		}
		if err := h.streamSvc.Complete(ctx, c.WorkerID, outcome, &report); err != nil {
			logger.Errorf("failed to record result for task %s: %v", report.TaskID, err)
		}

	default:
		logger.Debugf("unknown message type %q from %q", env.Type, c.WorkerID)
	}
}
