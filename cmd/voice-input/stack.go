package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petems/voice-input/internal/app"
	"github.com/petems/voice-input/internal/audio"
	"github.com/petems/voice-input/internal/capture"
	"github.com/petems/voice-input/internal/config"
	"github.com/petems/voice-input/internal/metrics"
	"github.com/petems/voice-input/internal/pipeline"
	"github.com/petems/voice-input/internal/recognize"
	"github.com/petems/voice-input/internal/snapshot"
)

// stack is the capture-to-conditioning pipeline shared by record and run.
type stack struct {
	cfg *config.Config
	log zerolog.Logger

	backend     audio.Backend
	registry    *prometheus.Registry
	metrics     *metrics.Pipeline
	queue       *pipeline.Queue
	cache       *snapshot.Cache
	session     *capture.Session
	worker      *pipeline.Worker
	completions chan pipeline.Completion
}

func newStack(cfg *config.Config, log zerolog.Logger, backend audio.Backend) (*stack, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.NewPipeline(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	cache, err := snapshot.New(snapshot.Options{
		Dir:    cfg.Snapshots.Dir,
		TTL:    cfg.Snapshots.TTL,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	queue := pipeline.NewQueue(cfg.Queue.Capacity)
	completions := make(chan pipeline.Completion, queue.Cap())

	s := &stack{
		cfg:         cfg,
		log:         log,
		backend:     backend,
		registry:    registry,
		metrics:     m,
		queue:       queue,
		cache:       cache,
		completions: completions,
	}

	s.session = capture.NewSession(capture.SessionConfig{
		State:    capture.NewState(cfg.CaptureOptions(), log),
		Backend:  backend,
		Queue:    queue,
		Observer: m,
		Logger:   log,
	})

	s.worker = pipeline.NewWorker(pipeline.WorkerConfig{
		Queue:       queue,
		Snapshots:   cache,
		Params:      cfg.ConditionerParams(),
		Logger:      log,
		Metrics:     m,
		Completions: completions,
	})

	log.Debug().
		Str("snapshots", cache.Dir()).
		Int("queue_capacity", queue.Cap()).
		Int("max_record_seconds", cfg.Capture.MaxRecordSeconds).
		Msg("Pipeline ready")
	return s, nil
}

// recognizer builds the external recognizer, or returns nil when recognition
// is disabled or the engine is not installed.
func (s *stack) recognizer(ctx context.Context) (recognize.Recognizer, error) {
	rc := s.cfg.Recognition
	if !rc.Enabled {
		return nil, nil
	}

	if _, err := exec.LookPath(rc.Command); err != nil {
		s.log.Warn().Err(err).Str("command", rc.Command).Msg("Recognition engine not found, keeping snapshots only")
		return nil, nil
	}

	var modelPath string
	if rc.AutoDownload {
		path, err := recognize.EnsureModel(ctx, rc.Model, s.cfg.ModelsDir(), rc.ModelURL)
		if err != nil {
			return nil, fmt.Errorf("prepare model: %w", err)
		}
		modelPath = path
	} else {
		file, err := recognize.ModelFile(rc.Model)
		if err != nil {
			return nil, err
		}
		modelPath = filepath.Join(s.cfg.ModelsDir(), file)
	}

	return recognize.NewCommand(recognize.CommandOptions{
		Command:     rc.Command,
		Args:        rc.Args,
		ModelPath:   modelPath,
		Language:    rc.Language,
		MinDuration: rc.MinDuration,
		TempDir:     s.cache.Dir(),
		Logger:      s.log,
	}), nil
}

// serve runs the worker and the app loop until shutdown is closed, then
// submits any active recording, drains the queue and returns.
func (s *stack) serve(ctx context.Context, a *app.App, shutdown <-chan struct{}) error {
	g, gctx := errgroup.WithContext(ctx)
	drained := make(chan struct{})

	g.Go(func() error {
		defer close(s.completions)
		return s.worker.Run(gctx)
	})

	g.Go(func() error {
		defer close(drained)
		return a.Run(gctx)
	})

	g.Go(func() error {
		select {
		case <-shutdown:
		case <-gctx.Done():
		}
		s.log.Info().Msg("Shutting down...")
		if err := a.Shutdown(gctx); err != nil {
			s.log.Error().Err(err).Msg("Shutdown error")
		}
		s.queue.Close()
		return nil
	})

	if s.cfg.Metrics.Listen != "" {
		g.Go(func() error { return s.serveMetrics(s.cfg.Metrics.Listen, drained) })
	}

	return g.Wait()
}

func (s *stack) serveMetrics(addr string, done <-chan struct{}) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *stack) Close() {
	if err := s.session.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Failed to close session")
	}
	if err := s.backend.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Failed to close audio backend")
	}
	if err := s.cache.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove snapshots")
	}
}
