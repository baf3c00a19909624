package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/savid/xumo/internal/config"
	"github.com/savid/xumo/internal/data"
	"github.com/savid/xumo/internal/pipeline"
	"github.com/sirupsen/logrus"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Server serves the generated artifacts over HTTP and keeps them fresh.
type Server struct {
	log       logrus.FieldLogger
	cfg       *config.Config
	store     *data.Store
	pipe      *pipeline.Pipeline
	refresher *data.Refresher
	server    *http.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates a server around an existing pipeline.
func NewServer(log logrus.FieldLogger, cfg *config.Config, pipe *pipeline.Pipeline) *Server {
	store := data.NewStore()

	s := &Server{
		log:   log.WithField("component", "server"),
		cfg:   cfg,
		store: store,
		pipe:  pipe,
	}

	s.refresher = data.NewRefresher(log, s.regenerate, cfg.RefreshInterval)

	return s
}

// regenerate runs the pipeline and publishes the result to the store.
func (s *Server) regenerate(ctx context.Context) error {
	result, err := s.pipe.Run(ctx)
	if err != nil {
		return err
	}

	s.store.Set(&data.Artifacts{
		Playlist:     result.Playlist,
		Guide:        result.Guide,
		ChannelCount: result.ChannelCount,
		ProgramCount: result.ProgramCount,
		GeneratedAt:  time.Now(),
	})

	return nil
}

// Start runs an initial generation and starts serving.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("server already running")
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info("Running initial generation")

	if err := s.regenerate(serverCtx); err != nil {
		cancel()

		return fmt.Errorf("initial generation failed: %w", err)
	}

	if err := s.refresher.Start(serverCtx); err != nil {
		cancel()

		return fmt.Errorf("failed to start refresher: %w", err)
	}

	routes := NewRoutes(s.log, s.cfg, s.store)

	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr(),
		Handler:      routes.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go s.run(serverCtx)

	s.log.WithField("addr", s.cfg.ListenAddr()).Info("Server started")

	return nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	if done != nil {
		<-done
	}

	if err := s.refresher.Stop(); err != nil {
		s.log.WithError(err).Warn("Failed to stop refresher")
	}

	s.log.Info("Server stopped")

	return nil
}

func (s *Server) run(ctx context.Context) {
	defer close(s.done)

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down server")
	case err := <-errCh:
		if err != nil {
			s.log.WithError(err).Error("Server error")
		}

		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Warn("Server shutdown error")
	}
}
