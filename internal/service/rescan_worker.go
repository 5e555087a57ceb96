package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/pkg/config"
	"github.com/timeweaver/timeweaver-api/pkg/jobs"
)

// RescanWorker runs conflict rescans in the background after timetable
// mutations, so that leave application responds without waiting for a full
// detection pass.
type RescanWorker struct {
	queue      *jobs.Queue
	timetables *TimetableService
	logger     *zap.Logger
}

// NewRescanWorker wires a job queue around the timetable service's rescan.
func NewRescanWorker(timetables *TimetableService, cfg config.RescanConfig, logger *zap.Logger) *RescanWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &RescanWorker{timetables: timetables, logger: logger}
	w.queue = jobs.NewQueue("conflict-rescan", w.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return w
}

// Start begins background processing.
func (w *RescanWorker) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop drains the workers.
func (w *RescanWorker) Stop() {
	w.queue.Stop()
}

// EnqueueRescan schedules a conflict rescan for the timetable.
func (w *RescanWorker) EnqueueRescan(timetableID string) {
	err := w.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "conflict-rescan",
		Payload: timetableID,
	})
	if err != nil {
		w.logger.Warn("failed to enqueue conflict rescan",
			zap.String("timetable_id", timetableID), zap.Error(err))
	}
}

func (w *RescanWorker) handle(ctx context.Context, job jobs.Job) error {
	timetableID, ok := job.Payload.(string)
	if !ok {
		w.logger.Error("conflict rescan job carries no timetable id", zap.String("job_id", job.ID))
		return nil
	}
	_, err := w.timetables.Rescan(ctx, timetableID)
	return err
}
