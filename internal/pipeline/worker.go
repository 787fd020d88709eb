package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/treerule/internal/parser"
	"github.com/dgallion1/treerule/internal/pathstore"
	"github.com/dgallion1/treerule/internal/rules"
)

// Worker processes a single tree job.
type Worker struct {
	pathstore *pathstore.Client
	log       *slog.Logger
	stats     *ExtractionStats
	metrics   *Metrics
	maxDepth  int

	// backoff is Backoff outside tests.
	backoff func(attempt int) time.Duration
}

// NewWorker builds a worker. A nil pathstore client disables publishing.
func NewWorker(ps *pathstore.Client, log *slog.Logger, stats *ExtractionStats, metrics *Metrics, maxDepth int) *Worker {
	return &Worker{
		pathstore: ps,
		log:       log,
		stats:     stats,
		metrics:   metrics,
		maxDepth:  maxDepth,
		backoff:   Backoff,
	}
}

// Process extracts leaf rules for a job and publishes them when enabled.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "tree_id", job.TreeID)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	p, err := parser.ForFile(job.Filename, parser.Options{MaxDepth: w.maxDepth, Logger: log})
	if err != nil {
		log.Error("unsupported format", "error", err)
		w.fail(job, "extracting", err.Error())
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(job.Filename)), ".")
	start := time.Now()
	table, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("extraction failed", "error", err)
		w.fail(job, "extracting", fmt.Sprintf("extract: %s", err))
		return
	}
	w.stats.Record(elapsed.Milliseconds(), table.Len())
	w.metrics.ExtractSeconds.WithLabelValues(format).Observe(elapsed.Seconds())
	w.metrics.LeavesExtracted.Add(float64(table.Len()))

	job.SetResult(table)
	// The upload is no longer needed once the table exists.
	job.SetFileData(nil)
	log.Info("extraction complete", "leaves", table.Len(), "duration_ms", elapsed.Milliseconds())

	if w.pathstore == nil {
		w.finish(job, StatusCompleted, "done")
		return
	}

	// Phase 2: Publish
	job.SetStatus(StatusPublishing, "publishing")
	published, failed := w.publish(ctx, log, job, table)
	job.AddPublished(published)
	log.Info("publish complete", "published", published, "failed", failed)

	switch {
	case failed == 0:
		w.finish(job, StatusCompleted, "done")
	case published > 0:
		w.finish(job, StatusPartial, "done")
	default:
		w.finish(job, StatusFailed, "publishing")
	}
}

// publish writes the meta node and then each leaf with a link back to the
// meta node. A meta failure stops the publish.
func (w *Worker) publish(ctx context.Context, log *slog.Logger, job *Job, table *rules.Table) (published, failed int) {
	metaKey := pathstore.MetaKey(job.TreeID)
	metaErr := w.retry(ctx, log, metaKey, func() error {
		return w.pathstore.PutNode(ctx, metaKey, pathstore.NodeRequest{
			Value: map[string]any{
				"filename":     job.Filename,
				"title":        job.Title,
				"content_hash": job.ContentHash,
				"leaves":       table.Len(),
				"created_at":   job.CreatedAt.Format(time.RFC3339),
			},
			MemoryType: "metacognitive",
			Salience:   0.5,
			Source:     "treerule:" + job.TreeID,
		})
	})
	if metaErr != nil {
		log.Error("meta write failed", "error", metaErr)
		job.AddError(fmt.Sprintf("meta: %s", metaErr))
		return 0, table.Len()
	}

	for _, leaf := range table.Leaves {
		key := pathstore.LeafKey(job.TreeID, leaf.ID)
		err := w.retry(ctx, log, key, func() error {
			return w.pathstore.PutNode(ctx, key, pathstore.LeafNode(job.TreeID, leaf))
		})
		if err != nil {
			log.Error("leaf write failed", "leaf_id", leaf.ID, "error", err)
			job.AddError(fmt.Sprintf("leaf %d: %s", leaf.ID, err))
			failed++
			continue
		}
		published++

		linkErr := w.retry(ctx, log, key+" link", func() error {
			return w.pathstore.PutLink(ctx, pathstore.LinkRequest{
				From:    key,
				To:      metaKey,
				Weight:  1,
				Summary: "leaf of",
			})
		})
		if linkErr != nil {
			log.Warn("link write failed", "leaf_id", leaf.ID, "error", linkErr)
		}
	}
	return published, failed
}

func (w *Worker) retry(ctx context.Context, log *slog.Logger, what string, op func() error) error {
	retries, err := withRetry(ctx, log, w.backoff, what, op)
	if retries > 0 {
		w.metrics.PublishRetries.Add(float64(retries))
	}
	return err
}

func (w *Worker) fail(job *Job, phase, msg string) {
	job.AddError(msg)
	w.finish(job, StatusFailed, phase)
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	w.metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	job.SetStatus(status, phase)
}
