// Command fantacircolo runs the fantasy game HTTP service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/circolo-dev/fantacircolo/internal/adapters/auth"
	"github.com/circolo-dev/fantacircolo/internal/adapters/http/api"
	"github.com/circolo-dev/fantacircolo/internal/adapters/repository"
	service "github.com/circolo-dev/fantacircolo/internal/app"
	"github.com/circolo-dev/fantacircolo/internal/config"
	"github.com/circolo-dev/fantacircolo/internal/scheduler"
	"github.com/circolo-dev/fantacircolo/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Pick the store: SQLite when a path is configured, in-memory otherwise.
	var store repository.Store
	if cfg.DBPath != "" {
		store, err = repository.NewSQLiteStore(ctx, cfg.DBPath)
		if err != nil {
			log.Error(ctx, "failed to open store", logger.String("db_path", cfg.DBPath), logger.Error(err))
			return
		}
		log.Info(ctx, "using sqlite store", logger.String("db_path", cfg.DBPath))
	} else {
		store = repository.NewMemStore()
		log.Warn(ctx, "using in-memory store; data is lost on restart")
	}

	deadline, err := cfg.ResetDeadlineTime()
	if err != nil {
		os.Stderr.WriteString("invalid reset deadline: " + err.Error() + "\n")
		return
	}

	svc := service.New(
		service.WithStore(store),
		service.WithLogger(log),
		service.WithStartingCredits(cfg.StartingCredits),
		service.WithResetDeadline(deadline),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithEventLimits(cfg.AdminEventLimit, cfg.PublicEventLimit),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Background drift audit.
	sched, err := scheduler.New(svc, log.Named("scheduler"))
	if err != nil {
		log.Error(ctx, "failed to create scheduler", logger.Error(err))
		return
	}
	if err := sched.Start(time.Duration(cfg.DriftCheckMinutes) * time.Minute); err != nil {
		log.Error(ctx, "failed to start scheduler", logger.Error(err))
		return
	}
	defer func() { _ = sched.Stop() }()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	verifier := auth.NewStaticVerifier(cfg.Tokens)
	apiServer := api.NewServer(svc, verifier, api.WithMaxLeaderboardRows(cfg.MaxLeaderboardLimit))
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}
