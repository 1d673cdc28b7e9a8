package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"paperchat/internal/models"
	"paperchat/internal/storage"
)

const (
	countMismatchMessage = "stored chunks do not match the recorded count"
	missingFileMessage   = "the uploaded file is missing; upload it again"
)

// DefaultReconcileGrace covers the gap between a dispatch and the job
// becoming visible as running.
const DefaultReconcileGrace = time.Minute

type Report struct {
	Checked   int      `json:"checked"`
	Completed []string `json:"completed"`
	Failed    []string `json:"failed"`
	Missing   []string `json:"missing_files"`
	Skipped   []string `json:"skipped"`
}

// Reconciler repairs documents whose recorded state disagrees with the
// vector store, e.g. after a crash mid-pipeline.
type Reconciler struct {
	docs       storage.DocumentStore
	vectors    storage.VectorStore
	dispatcher Dispatcher
	grace      time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewReconciler(docs storage.DocumentStore, vectors storage.VectorStore, dispatcher Dispatcher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		docs:       docs,
		vectors:    vectors,
		dispatcher: dispatcher,
		grace:      DefaultReconcileGrace,
		now:        time.Now,
		logger:     logger.With("component", "reconciler"),
	}
}

// WithGrace returns a copy that leaves processing documents alone until
// they have been idle for d. Zero is only safe when nothing can be running.
func (r *Reconciler) WithGrace(d time.Duration) *Reconciler {
	c := *r
	c.grace = d
	return &c
}

func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	report := Report{Completed: []string{}, Failed: []string{}, Missing: []string{}, Skipped: []string{}}
	docs, err := r.docs.List(ctx, "")
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		report.Checked++
		switch d.Status {
		case models.StatusProcessing:
			running, err := r.dispatcher.Running(ctx, d.DocumentID)
			if err != nil {
				return report, fmt.Errorf("check running %s: %w", d.DocumentID, err)
			}
			if running {
				continue
			}
			if r.grace > 0 && r.now().Sub(d.UpdatedAt) < r.grace {
				report.Skipped = append(report.Skipped, d.DocumentID)
				continue
			}
			stored, err := r.vectors.CountChunks(ctx, d.DocumentID)
			if err != nil {
				return report, err
			}
			if stored > 0 && stored == d.TotalChunks {
				if err := r.docs.Complete(ctx, d.DocumentID, d.TotalPages, d.TotalChunks); err != nil {
					return report, err
				}
				report.Completed = append(report.Completed, d.DocumentID)
				r.logger.Info("recovered interrupted document", "document_id", d.DocumentID, "chunks", stored)
				continue
			}
			if err := r.fail(ctx, d.DocumentID, interruptedMessage); err != nil {
				return report, err
			}
			report.Failed = append(report.Failed, d.DocumentID)
		case models.StatusCompleted:
			if fileMissing(d) {
				if err := r.fail(ctx, d.DocumentID, missingFileMessage); err != nil {
					return report, err
				}
				report.Missing = append(report.Missing, d.DocumentID)
				continue
			}
			stored, err := r.vectors.CountChunks(ctx, d.DocumentID)
			if err != nil {
				return report, err
			}
			if stored != d.TotalChunks {
				if err := r.fail(ctx, d.DocumentID, countMismatchMessage); err != nil {
					return report, err
				}
				report.Failed = append(report.Failed, d.DocumentID)
			}
		}
	}
	r.logger.Info("reconcile finished", "checked", report.Checked, "completed", len(report.Completed),
		"failed", len(report.Failed), "missing_files", len(report.Missing), "skipped", len(report.Skipped))
	return report, nil
}

func (r *Reconciler) fail(ctx context.Context, id, msg string) error {
	r.logger.Warn("marking document as failed", "document_id", id, "reason", msg)
	if err := r.vectors.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := r.docs.UpdateStatus(ctx, id, models.StatusError, msg); err != nil {
		return err
	}
	_ = r.docs.AppendLog(ctx, id, "Reconcile: "+msg)
	return nil
}

// fileMissing reports whether the document's upload is gone from disk.
// Documents without a recorded path are not checked.
func fileMissing(d models.Document) bool {
	if d.FilePath == "" {
		return false
	}
	_, err := os.Stat(d.FilePath)
	return errors.Is(err, fs.ErrNotExist)
}
