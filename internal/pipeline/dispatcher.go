package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrAlreadyRunning = errors.New("document is already being processed")

type Job struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// Dispatcher starts background processing for uploaded documents.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
	Running(ctx context.Context, documentID string) (bool, error)
}

type Runner interface {
	Run(ctx context.Context, documentID string) error
}

// LocalDispatcher runs jobs on goroutines, at most limit at a time, and
// never two for the same document.
type LocalDispatcher struct {
	runner Runner
	base   context.Context
	sem    chan struct{}
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewLocalDispatcher runs jobs under base, which outlives the request that
// dispatched them.
func NewLocalDispatcher(base context.Context, runner Runner, limit int, logger *slog.Logger) *LocalDispatcher {
	if limit <= 0 {
		limit = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalDispatcher{
		runner:   runner,
		base:     base,
		sem:      make(chan struct{}, limit),
		logger:   logger.With("component", "dispatcher"),
		inflight: map[string]struct{}{},
	}
}

func (d *LocalDispatcher) Dispatch(_ context.Context, job Job) error {
	d.mu.Lock()
	if _, ok := d.inflight[job.DocumentID]; ok {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.inflight[job.DocumentID] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.inflight, job.DocumentID)
			d.mu.Unlock()
		}()
		select {
		case d.sem <- struct{}{}:
		case <-d.base.Done():
			d.logger.Warn("job dropped at shutdown", "document_id", job.DocumentID)
			return
		}
		defer func() { <-d.sem }()
		if err := d.runner.Run(d.base, job.DocumentID); err != nil {
			d.logger.Warn("job failed", "document_id", job.DocumentID, "error", err)
		}
	}()
	return nil
}

func (d *LocalDispatcher) Running(_ context.Context, documentID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[documentID]
	return ok, nil
}

// Wait blocks until every dispatched job has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
