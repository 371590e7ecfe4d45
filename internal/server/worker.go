package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cwbudde/mandelzoom/internal/engine"
	"github.com/cwbudde/mandelzoom/internal/store"
)

// runJob executes one frame computation in the background, advancing the
// job's row count as the engine reports progress and persisting the result
// for later reuse if cacheStore is non-nil.
func runJob(ctx context.Context, jm *JobManager, cacheStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	req := engine.FrameRequest{
		XMin: job.Spec.XMin, XMax: job.Spec.XMax,
		YMin: job.Spec.YMin, YMax: job.Spec.YMax,
		Width: job.Spec.Width, Height: job.Spec.Height,
		MaxIter: job.Spec.MaxIter,
	}

	mode, err := engine.ChoosePrecisionMode(req.XMin, req.XMax, req.Width)
	if err != nil {
		jm.Fail(jobID, err)
		slog.Error("frame job failed", "job_id", jobID, "error", err)
		return err
	}
	jm.MarkRunning(jobID, mode.String())
	slog.Info("starting frame job", "job_id", jobID, "mode", mode.String(), "width", req.Width, "height", req.Height)

	hash := hashFrameSpec(job.Spec)
	if cacheStore != nil {
		if cached, err := cacheStore.LoadFrame(hash); err == nil {
			if err := cached.IsCompatible(store.FrameSpec(job.Spec)); err == nil {
				jm.Finish(jobID, cached.Mode, hash, cached.Values)
				broadcastProgress(jm, jobID)
				slog.Info("frame served from cache", "job_id", jobID, "hash", hash)
				return nil
			}
		}
	}

	select {
	case <-ctx.Done():
		jm.Cancel(jobID)
		return ctx.Err()
	default:
	}

	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	out := make([]float64, req.Width*req.Height)
	var rowsDone int64
	start := time.Now()
	computeErr := engine.ComputeWithProgress(req, out, func() {
		jm.AdvanceRows(jobID, int(atomic.AddInt64(&rowsDone, 1)))
	})
	close(progressDone)

	if computeErr != nil {
		jm.Fail(jobID, computeErr)
		slog.Error("frame job failed", "job_id", jobID, "error", computeErr)
		return computeErr
	}

	select {
	case <-ctx.Done():
		jm.Cancel(jobID)
		return ctx.Err()
	default:
	}

	jm.Finish(jobID, mode.String(), hash, out)
	slog.Info("frame job completed", "job_id", jobID, "mode", mode.String(), "elapsed", time.Since(start))

	if cacheStore != nil {
		record := store.NewFrameRecord(hash, store.FrameSpec(job.Spec), mode.String(), out)
		if err := cacheStore.SaveFrame(hash, record); err != nil {
			slog.Warn("failed to cache frame", "job_id", jobID, "error", err)
		}
	}

	broadcastProgress(jm, jobID)
	return nil
}

// monitorProgress periodically broadcasts the job's row-progress snapshot
// while it runs, on a fixed ticker rather than per-row, so a fast frame
// doesn't flood subscribers with one SSE event per row.
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !broadcastProgress(jm, jobID) {
				return
			}
		}
	}
}

// broadcastProgress publishes a job's current row-progress snapshot and
// reports whether the job still exists.
func broadcastProgress(jm *JobManager, jobID string) bool {
	event, ok := jm.ProgressEvent(jobID)
	if !ok {
		return false
	}
	jm.broadcaster.Broadcast(event)
	return true
}
