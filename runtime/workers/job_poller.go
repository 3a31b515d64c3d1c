package workers

import (
	"context"
	"log/slog"
	"project-hub/contract"
	"time"
)

// JobPoller periodically asks the scheduler to fire due jobs.
// Several pollers may run side by side: claims are atomic in the store.
type JobPoller struct {
	log       *slog.Logger
	scheduler contract.IScheduler
	interval  time.Duration
	batchSize int
}

func NewJobPoller(log *slog.Logger, scheduler contract.IScheduler, interval time.Duration, batchSize int) *JobPoller {
	return &JobPoller{log: log, scheduler: scheduler, interval: interval, batchSize: batchSize}
}

func (w *JobPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping job poller")
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll drains due jobs batch after batch until a batch comes back short.
func (w *JobPoller) Poll(ctx context.Context) {
	for ctx.Err() == nil {
		settled, err := w.scheduler.FireDue(ctx, w.batchSize)
		if err != nil {
			w.log.Error("Polling due jobs failed", "error", err)
			return
		}
		if settled > 0 {
			w.log.Debug("Settled due jobs", "count", settled)
		}
		if w.batchSize <= 0 || settled < w.batchSize {
			return
		}
	}
}
