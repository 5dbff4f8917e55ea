package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	_ "taskboard/docs"
	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
	"taskboard/internal/realtime"
	"taskboard/internal/repositories"
	"taskboard/internal/routes"
	"taskboard/internal/services"
)

// App owns every long-lived resource of the server process.
type App struct {
	cfg *config.Config
	log *logrus.Entry

	db     *sqlx.DB
	rc     *redis.Client
	relay  *realtime.Relay
	hub    *realtime.Hub
	router *gin.Engine
}

func New(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*App, error) {
	a := &App{cfg: cfg, log: log}

	// === DB ===
	openCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout.Std())
	defer cancel()
	db, err := repositories.Open(openCtx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.db = db

	// === Repos / Services ===
	taskRepo := repositories.NewTaskRepository(db)
	taskService := services.NewTaskService(taskRepo, log.WithField("component", "tasks"), services.TaskServiceConfig{
		StoreTimeout: cfg.Database.Timeout.Std(),
		Location:     cfg.Location(),
	})

	// === Realtime ===
	rtLog := log.WithField("component", "realtime")
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry, rtLog)
	if cfg.Redis.Enabled {
		a.rc = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := a.rc.Ping(openCtx).Err(); err != nil {
			a.closeStores()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.relay = realtime.NewRelay(a.rc, cfg.Redis.Prefix, rtLog)
		broadcaster.WithRelay(a.relay)
	}
	a.hub = realtime.NewHub(registry, broadcaster, taskService, sessionConfig(cfg.Realtime), rtLog)

	// === Handlers ===
	checks := map[string]handlers.Pinger{"database": db}
	if a.rc != nil {
		checks["redis"] = redisPinger{a.rc}
	}
	httpLog := log.WithField("component", "http")
	taskHandler := handlers.NewTaskHandler(taskService, httpLog)
	wsHandler := handlers.NewWSHandler(a.hub, cfg.Server.AllowedOrigins, httpLog)
	healthHandler := handlers.NewHealthHandler(checks)

	// === Gin ===
	if cfg.Log.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(httpLog))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	routes.SetupRoutes(router, middleware.IdentityConfig{
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		AllowHeader: cfg.Auth.AllowHeaderIdentity,
		Optional:    cfg.Auth.AnonymousReads,
	}, taskHandler, wsHandler, healthHandler)
	a.router = router

	return a, nil
}

func sessionConfig(rc config.RealtimeConfig) realtime.SessionConfig {
	return realtime.SessionConfig{
		SendBuffer:      rc.SendBuffer,
		WriteWait:       rc.WriteWait.Std(),
		PongWait:        rc.PongWait.Std(),
		PingPeriod:      rc.PingPeriod.Std(),
		MaxMessageBytes: rc.MaxMessageBytes,
	}
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopRelay := a.startRelay()

	serveErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("listen: %w", err)
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	// hijacked WebSocket conns are not tracked by the server; close them ourselves
	a.hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}
	stopRelay()
	a.closeStores()
	a.log.Info("server stopped")
	return runErr
}

// startRelay subscribes to other instances' broadcasts. The returned func
// stops the subscription and waits for it to exit.
func (a *App) startRelay() func() {
	if a.relay == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.relay.Run(ctx, a.hub.DeliverRelayed)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// Close releases everything without going through Run; used when the app was
// only mounted on a test server.
func (a *App) Close() {
	a.hub.Shutdown()
	a.closeStores()
}

func (a *App) closeStores() {
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.log.WithError(err).Warn("close redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("close db")
		}
	}
}

type redisPinger struct{ rc *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rc.Ping(ctx).Err() }
