// Package app provides the application lifecycle of the segavg server: it
// stages the tables, builds the engine, and runs the HTTP and gRPC servers.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpcapi "github.com/arkilian/segavg/internal/api/grpc"
	httpapi "github.com/arkilian/segavg/internal/api/http"
	"github.com/arkilian/segavg/internal/config"
	"github.com/arkilian/segavg/internal/engine"
	"github.com/arkilian/segavg/internal/observability"
	"github.com/arkilian/segavg/internal/server"
)

// App manages the engine and server lifecycles.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	registry *prometheus.Registry
	metrics  *observability.Metrics
	stats    *observability.SegmentStats
	shutdown *server.ShutdownManager

	engine       *engine.Engine
	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  observability.NewMetrics(registry),
		stats:    observability.NewSegmentStats(time.Hour),
		shutdown: server.NewShutdownManager(server.ShutdownConfig{Logger: logger}),
	}, nil
}

// Start stages the tables if object storage is configured, builds the engine,
// and starts the servers. It returns once the servers are listening.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	if _, err := StageTables(ctx, a.cfg, false, a.logger); err != nil {
		return fmt.Errorf("failed to stage tables: %w", err)
	}

	eng, err := engine.Open(ctx, EngineConfig(a.cfg, a.logger, a.metrics, a.stats))
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	a.engine = eng
	a.shutdown.RegisterCloser(eng)

	if err := a.startHTTP(); err != nil {
		a.shutdown.Shutdown(context.Background(), "start failed")
		return err
	}
	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			a.shutdown.Shutdown(context.Background(), "start failed")
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.stats.Prune()
			case <-a.shutdown.ShutdownCh():
				return
			}
		}
	}()

	a.logger.Info("segavg started",
		zap.String("run_id", eng.RunID()),
		zap.String("http_addr", a.httpListener.Addr().String()),
		zap.Bool("grpc", a.cfg.GRPC.Enabled),
	)
	return nil
}

func (a *App) startHTTP() error {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Querier: a.engine,
		Stats:   a.stats,
		Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Logger:  a.logger,
	})

	a.httpServer = &http.Server{
		Handler:      server.ShutdownMiddleware(a.shutdown)(router),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.httpListener = lis
	a.shutdown.RegisterCloser(&server.HTTPServerCloser{Server: a.httpServer})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
		if err := a.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (a *App) startGRPC() error {
	a.grpcServer = grpc.NewServer()
	grpcapi.RegisterSegmentAverageServer(a.grpcServer, grpcapi.NewServer(a.engine, a.logger))

	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = lis

	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server error", zap.Error(err))
		}
	}()
	return nil
}

// Run starts the app and blocks until a termination signal arrives or ctx is
// done, then stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	err := a.shutdown.ListenForSignals(ctx)
	a.wg.Wait()
	return err
}

// Stop shuts the servers down and closes the engine.
func (a *App) Stop(ctx context.Context) error {
	err := a.shutdown.Shutdown(ctx, "stop requested")
	a.wg.Wait()
	return err
}

// Engine returns the engine built by Start.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// HTTPAddr returns the address the HTTP server listens on.
func (a *App) HTTPAddr() string {
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the address the gRPC server listens on.
func (a *App) GRPCAddr() string {
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}
