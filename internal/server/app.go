// Package server wires the profilekeeper server: storage backend, record
// store, risk advisor client, the JSON API and the gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/server/advisor"
	"github.com/dmitrijs2005/profilekeeper/internal/server/config"
	"github.com/dmitrijs2005/profilekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/profilekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/profilekeeper/internal/server/profiles"
	"github.com/dmitrijs2005/profilekeeper/internal/server/records"

	gs "github.com/dmitrijs2005/profilekeeper/internal/server/grpc"
)

const rateLimiterCleanupInterval = 5 * time.Minute

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	store   *records.Store
	service *profiles.Service
	db      *sql.DB
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, parseLevel(c.LogLevel))
	m := metrics.New()

	app := &App{config: c, logger: logger, metrics: m}

	codec, err := app.newCodec(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app.store = records.NewStore(codec, logger, records.WithObserver(m.ObserveStoreOp))

	adv := advisor.NewClient(advisor.Config{
		BaseURL: c.AdvisorURL,
		Timeout: c.AdvisorTimeout,
	}, logger, advisor.WithObserver(m.ObserveAdvisorCall))

	app.service = profiles.NewService(app.store, adv, logger)
	return app, nil
}

func (app *App) newCodec(ctx context.Context) (records.Codec, error) {
	c := app.config
	switch c.StorageBackend {
	case config.BackendPostgres:
		db, err := records.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		app.db = db
		return records.NewPostgresCodec(db, c.CollectionName, app.logger), nil
	case config.BackendS3:
		client, err := records.NewS3Client(ctx, records.S3Options{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return records.NewS3Codec(client, c.S3Bucket, c.S3ObjectKey, app.logger), nil
	default:
		return records.NewFileCodec(c.DataFile, app.logger), nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) handler(ctx context.Context) *httpapi.Server {
	var rl *httpapi.RateLimiter
	if app.config.RateLimitRPS > 0 {
		rl = httpapi.NewRateLimiter(app.config.RateLimitRPS, app.config.RateLimitBurst, app.logger)
		rl.StartCleanup(ctx, rateLimiterCleanupInterval)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Service:        app.service,
		Store:          app.store,
		Metrics:        app.metrics,
		Logger:         app.logger,
		AllowedOrigins: app.config.AllowedOrigins,
		RateLimiter:    rl,
	})

	return httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.logger, app.config.ShutdownTimeout)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.handler(ctx).Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.store)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until a signal arrives, ctx is cancelled or one of the servers
// fails, then waits for both servers to stop.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"http", app.config.EndpointAddrHTTP,
		"grpc", app.config.EndpointAddrGRPC,
		"storage", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "close database", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
