// Package app assembles the worker's resources into one Application
// struct, generalizing the teacher's cmd/trading/app.App (which already
// avoids global singletons) to also own the ClickHouse pool and the lock
// manager. Kafka readers and writers are not owned by Application: each
// subcommand creates and closes its own.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"tradeforge-core/internal/config"
	"tradeforge-core/internal/platform/lock"
	"tradeforge-core/pkg/cache"
	"tradeforge-core/pkg/database"
	"tradeforge-core/pkg/log"
	"tradeforge-core/pkg/upstream"
)

// Application owns every shared resource a subcommand might need: database
// pools, the Redis client, an upstream HTTP client, and the lock manager.
// Subcommands construct only the consumer/service wiring specific to them
// on top of these shared resources.
type Application struct {
	Config *config.Config

	Postgres   *sqlx.DB
	ClickHouse *sqlx.DB
	Redis      *redis.Client

	Upstream *upstream.Client
	Locks    *lock.Manager

	cleanups []func()
}

// New opens every resource cfg describes and returns an Application ready
// for a subcommand to wire consumers against. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	a := &Application{Config: cfg}

	pg, pgCleanup, err := database.OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("app: failed to open postgres: %w", err)
	}
	a.Postgres = pg
	a.cleanups = append(a.cleanups, pgCleanup)

	ch, chCleanup, err := database.OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: failed to open clickhouse: %w", err)
	}
	a.ClickHouse = ch
	a.cleanups = append(a.cleanups, chCleanup)

	if cfg.MigrationsDir != "" {
		migrator := database.NewPostgresMigrationHandler(pg, cfg.MigrationsDir)
		if err := migrator.ApplyMigrations(); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: failed to apply postgres migrations: %w", err)
		}
	}

	a.Redis = cache.NewRedisStore(cfg.Redis)
	a.Upstream = upstream.NewClient(cfg.Upstream)
	a.Locks = lock.NewManager(a.Redis)

	return a, nil
}

// Close releases every resource opened by New, in reverse order.
func (a *Application) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

// ServeHealth runs a minimal gin server exposing /health/live and
// /health/ready until ctx is cancelled, grounded on
// cmd/trading/transport/rest/server.go's gin.Engine + http.Server +
// signal-channel shutdown shape.
func (a *Application) ServeHealth(ctx context.Context, port string) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "live"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		if err := a.Postgres.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		if err := a.Redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}
	return runWithShutdown(ctx, server)
}

func runWithShutdown(ctx context.Context, server *http.Server) error {
	port := server.Addr

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("health server listening on :%s", port)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("health server error: %w", err)
	case <-shutdown:
		log.Info("health server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
