// Package server exposes compile, query and business-context operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapmetrics/internal/executor"
	"github.com/leapstack-labs/leapmetrics/internal/project"
)

const shutdownTimeout = 5 * time.Second

// Server serves one project.
type Server struct {
	project         *project.Context
	executor        *executor.Executor
	addr            string
	watch           bool
	refreshSchedule string
	logger          *slog.Logger
}

// Config holds configuration for the server.
type Config struct {
	Project  *project.Context
	Executor *executor.Executor
	Addr     string
	// Watch reloads the project when its documents change on disk.
	Watch bool
	// RefreshSchedule is a cron expression for periodic reloads.
	RefreshSchedule string
	Logger          *slog.Logger
}

// New creates a server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		project:         cfg.Project,
		executor:        cfg.Executor,
		addr:            cfg.Addr,
		watch:           cfg.Watch,
		refreshSchedule: cfg.RefreshSchedule,
		logger:          logger,
	}
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	SetupRoutes(r, NewHandlers(s.project, s.executor, s.logger))
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var sched *project.Scheduler
	if s.refreshSchedule != "" {
		var err error
		if sched, err = project.NewScheduler(s.project, s.refreshSchedule); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln, sched)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, sched *project.Scheduler) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.project.Watch(egctx, project.DefaultDebounce)
		})
	}

	if sched != nil {
		sched.Start()
		eg.Go(func() error {
			<-egctx.Done()
			sched.Stop()
			return nil
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
