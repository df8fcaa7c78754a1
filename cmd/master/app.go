package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fleetd/app/handler"
	"fleetd/app/router"
	"fleetd/internal/auth"
	"fleetd/internal/hub"
	"fleetd/internal/service"
	"fleetd/pkg/config"
	"fleetd/pkg/logger"
	mysqlstore "fleetd/pkg/store/mysql"
	redisstore "fleetd/pkg/store/redis"

	"github.com/gin-gonic/gin"
)

// Application manages the lifecycle of the master process
type Application struct {
	// Infrastructure components
	config      *config.Config
	datastore   *mysqlstore.Datastore
	redisClient *redisstore.RedisClient

	// Coordination layer
	connHub  *hub.Hub
	verifier *auth.Verifier

	// Service layer
	workerService    *service.WorkerService
	dispatchService  *service.DispatchService
	streamService    *service.StreamService
	reconcileService *service.ReconcileService

	// Handler layer
	workerHandler *handler.WorkerHandler
	socketHandler *handler.SocketHandler

	// HTTP server
	httpServer *http.Server
	ginEngine  *gin.Engine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApplication creates a new Application instance
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (app *Application) Initialize() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Configuration", app.initConfig},
		{"Logging", app.initLogger},
		{"MySQL", app.initMySQL},
		{"Redis", app.initRedis},
		{"Coordination", app.initCoordination},
		{"Service Layer", app.initServices},
		{"Handler Layer", app.initHandlers},
		{"HTTP Server", app.initHTTPServer},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		logger.Infof("%s initialized", step.name)
	}

	return nil
}

func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	if app.config.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required (auth.secret or FLEETD_SECRET)")
	}
	return nil
}

func (app *Application) initLogger() error {
	return logger.Init()
}

func (app *Application) initMySQL() error {
	ds, err := mysqlstore.NewDatastore(app.config.MySQL.DSN())
	if err != nil {
		return err
	}
	if err := ds.AutoMigrate(); err != nil {
		return err
	}
	app.datastore = ds
	return nil
}

func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config.Redis)
	if err != nil {
		return err
	}
	app.redisClient = client
	return nil
}

func (app *Application) initCoordination() error {
	app.connHub = hub.New()
	app.verifier = auth.NewVerifier(
		app.config.Auth.Secret,
		time.Duration(app.config.Auth.MaxSkew)*time.Second,
	)
	return nil
}

func (app *Application) initServices() error {
	presence := redisstore.NewPresenceRepository(
		app.redisClient,
		time.Duration(app.config.Worker.MetricsTTL)*time.Second,
	)
	tasks := mysqlstore.NewTaskRepository(app.datastore)
	locks := service.NewWorkerLocks()

	app.workerService = service.NewWorkerService(presence, tasks, app.connHub)
	app.dispatchService = service.NewDispatchService(presence, tasks, app.connHub, locks)
	app.streamService = service.NewStreamService(presence, tasks, app.connHub, locks)
	app.reconcileService = service.NewReconcileService(presence, tasks, locks)
	return nil
}

func (app *Application) initHandlers() error {
	app.workerHandler = handler.NewWorkerHandler(app.workerService, app.dispatchService)
	app.socketHandler = handler.NewSocketHandler(
		app.connHub,
		app.verifier,
		app.workerService,
		app.streamService,
		app.reconcileService,
	)
	return nil
}

func (app *Application) initHTTPServer() error {
	if app.config.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	app.ginEngine = gin.New()

	r := router.NewRouter(app.workerHandler, app.socketHandler)
	r.Setup(app.ginEngine)

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}

// Start starts the HTTP server
func (app *Application) Start() error {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		logger.Infof("listening on %s", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()
	return nil
}

// Shutdown stops all components gracefully
func (app *Application) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}

	app.cancel()
	app.wg.Wait()

	if err := app.redisClient.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := app.datastore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	logger.Sync()
	return firstErr
}
