package router

import (
	"fleetd/app/handler"
	"fleetd/app/middleware"

	"github.com/gin-gonic/gin"
)

// Router Router
type Router struct {
	workerHandler *handler.WorkerHandler
	socketHandler *handler.SocketHandler
}

// NewRouter creates a new Router
func NewRouter(workerHandler *handler.WorkerHandler, socketHandler *handler.SocketHandler) *Router {
	return &Router{
		workerHandler: workerHandler,
		socketHandler: socketHandler,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	// Worker and observer connections
	engine.GET("/ws", r.socketHandler.Serve)

	api := engine.Group("/api")
	{
		api.GET("/workers", r.workerHandler.ListWorkers)
		api.POST("/execute", r.workerHandler.Execute)
		api.POST("/execute/all", r.workerHandler.ExecuteAll)
		api.GET("/logs", r.workerHandler.GetLogs)
		api.GET("/logs/:id", r.workerHandler.GetWorkerLogs)
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
