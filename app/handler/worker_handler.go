package handler

import (
	"errors"
	"net/http"

	"fleetd/internal/model"
	"fleetd/internal/service"
	"fleetd/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WorkerHandler handles the synchronous request/response surface: roster,
// dispatch and task history.
type WorkerHandler struct {
	workerService   *service.WorkerService
	dispatchService *service.DispatchService
}

// NewWorkerHandler creates a new worker handler
func NewWorkerHandler(workerService *service.WorkerService, dispatchService *service.DispatchService) *WorkerHandler {
	return &WorkerHandler{
		workerService:   workerService,
		dispatchService: dispatchService,
	}
}

// ListWorkers returns the visible roster
// GET /api/workers
func (h *WorkerHandler) ListWorkers(c *gin.Context) {
	workers, err := h.workerService.ListWorkers(c.Request.Context())
	if err != nil {
		logger.Errorf("failed to list workers: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence store unavailable"})
		return
	}
	c.JSON(http.StatusOK, workers)
}

// Execute dispatches a command to one worker
// POST /api/execute
func (h *WorkerHandler) Execute(c *gin.Context) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.WorkerID == "" || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command and workerId are required"})
		return
	}

	resp, err := h.dispatchService.Dispatch(c.Request.Context(), req.WorkerID, req.Command, service.DispatchOptions{
		Cwd:     req.Cwd,
		Timeout: req.Timeout,
	})
	if err != nil {
		h.renderDispatchError(c, req.WorkerID, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExecuteAll dispatches a command to every visible worker
// POST /api/execute/all
func (h *WorkerHandler) ExecuteAll(c *gin.Context) {
	var req model.ExecuteAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	resp, err := h.dispatchService.DispatchAll(c.Request.Context(), req.Command, service.DispatchOptions{
		Cwd:     req.Cwd,
		Timeout: req.Timeout,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoWorkers) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no available workers"})
			return
		}
		logger.Errorf("dispatch-all failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetLogs returns the full task history, newest first
// GET /api/logs
func (h *WorkerHandler) GetLogs(c *gin.Context) {
	h.history(c, "")
}

// GetWorkerLogs returns one worker's task history, newest first
// GET /api/logs/:id
func (h *WorkerHandler) GetWorkerLogs(c *gin.Context) {
	h.history(c, c.Param("id"))
}

func (h *WorkerHandler) history(c *gin.Context, workerID string) {
	tasks, err := h.workerService.History(c.Request.Context(), workerID)
	if err != nil {
		logger.Errorf("failed to fetch task history: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": tasks})
}

func (h *WorkerHandler) renderDispatchError(c *gin.Context, workerID string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCommand):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrWorkerNotConnected):
		c.JSON(http.StatusNotFound, gin.H{"error": "worker " + workerID + " is not connected"})
	case errors.Is(err, service.ErrWorkerBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "worker " + workerID + " already has a task in flight"})
	default:
		logger.Errorf("dispatch to %s failed: %v", workerID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
