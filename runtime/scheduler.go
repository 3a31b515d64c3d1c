package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
	"project-hub/errors"
	"project-hub/observability"
	"sync"
	"time"
)

const defaultAttemptsAllowed = 3

// Scheduler persists delayed jobs and fires them once they are due.
// Firing goes through an atomic claim on the store, so any number of
// pollers may call FireDue concurrently and a job still fires at most once.
type Scheduler struct {
	log             *slog.Logger
	store           contract.IJobStore
	metrics         *observability.Metrics
	attemptsAllowed int
	now             func() time.Time

	mu       sync.RWMutex
	handlers map[domain.JobKind]contract.JobHandler
}

func NewScheduler(log *slog.Logger, store contract.IJobStore, metrics *observability.Metrics, attemptsAllowed int) *Scheduler {
	if attemptsAllowed <= 0 {
		attemptsAllowed = defaultAttemptsAllowed
	}
	return &Scheduler{
		log:             log,
		store:           store,
		metrics:         metrics,
		attemptsAllowed: attemptsAllowed,
		now:             time.Now,
		handlers:        make(map[domain.JobKind]contract.JobHandler),
	}
}

// WithClock replaces the time source, tests only.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// RegisterHandler binds the handler run when a job of this kind fires.
func (s *Scheduler) RegisterHandler(kind domain.JobKind, handler contract.JobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

func (s *Scheduler) handler(kind domain.JobKind) (contract.JobHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

// Schedule stores the job to fire at fireAt. A fire time that is not in the
// future is skipped. Scheduling an existing jobID replaces it.
func (s *Scheduler) Schedule(ctx context.Context, jobID domain.JobID, kind domain.JobKind,
	payload domain.Payload, fireAt time.Time) (domain.ScheduleResult, error) {
	if jobID == "" || kind == "" {
		return "", fmt.Errorf("%w: job id and kind are required", errors.ErrInvalidJob)
	}
	now := s.now()
	if !fireAt.After(now) {
		s.log.Info("Fire time already passed, job skipped",
			"job_id", jobID, "kind", kind, "fire_at", fireAt)
		s.metrics.Job(string(kind), "skipped")
		return domain.JobSkipped, nil
	}
	job := domain.DelayedJob{
		ID:              jobID,
		Kind:            kind,
		Payload:         payload,
		FireAt:          fireAt,
		State:           domain.JobStateScheduled,
		AttemptsAllowed: s.attemptsAllowed,
		CreatedAt:       now,
	}
	if err := s.store.Save(ctx, job); err != nil {
		return "", fmt.Errorf("schedule job %s: %w", jobID, err)
	}
	s.metrics.Job(string(kind), "scheduled")
	s.log.Debug("Job scheduled", "job_id", jobID, "kind", kind, "fire_at", fireAt)
	return domain.JobScheduled, nil
}

// Cancel removes a pending job. Unknown, fired or already cancelled jobs report NotFound.
func (s *Scheduler) Cancel(ctx context.Context, jobID domain.JobID) (domain.CancelResult, error) {
	removed, err := s.store.Remove(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if !removed {
		s.log.Debug("Nothing to cancel", "job_id", jobID)
		return domain.JobNotFound, nil
	}
	s.log.Debug("Job cancelled", "job_id", jobID)
	return domain.JobCancelled, nil
}

// FireDue settles up to limit due jobs and returns how many left the due index.
// A job is either claimed and run, or marked Failed when no handler knows its kind.
// Handler failures are logged and recorded on the job, never returned.
func (s *Scheduler) FireDue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.store.ListDue(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}
	settled := 0
	for _, candidate := range due {
		if ctx.Err() != nil {
			return settled, nil
		}
		handler, ok := s.handler(candidate.Kind)
		if !ok {
			if s.failUnhandled(ctx, candidate) {
				settled++
			}
			continue
		}
		job, err := s.store.Claim(ctx, candidate.ID, now)
		switch {
		case stderrors.Is(err, errors.ErrClaimLost):
			s.log.Debug("Job claimed elsewhere", "job_id", candidate.ID)
			continue
		case err != nil:
			s.log.Error("Claim failed", "job_id", candidate.ID, "error", err)
			continue
		}
		settled++
		s.run(ctx, handler, job)
	}
	return settled, nil
}

func (s *Scheduler) failUnhandled(ctx context.Context, job domain.DelayedJob) bool {
	cause := fmt.Errorf("%w: %s", errors.ErrNoJobHandler, job.Kind)
	failed, err := s.store.Fail(ctx, job.ID, cause)
	if err != nil {
		s.log.Error("Unable to fail unhandled job", "job_id", job.ID, "error", err)
		return false
	}
	if failed {
		s.metrics.Job(string(job.Kind), "no_handler")
		s.log.Error("No handler for job kind, job marked failed", "job_id", job.ID, "kind", job.Kind)
	}
	return failed
}

func (s *Scheduler) run(ctx context.Context, handler contract.JobHandler, job domain.DelayedJob) {
	start := time.Now()
	err := safeHandle(ctx, handler, job)
	s.metrics.HandlerDuration(string(job.Kind), time.Since(start))
	if err == nil {
		s.metrics.Job(string(job.Kind), "fired")
		s.log.Info("Job fired", "job_id", job.ID, "kind", job.Kind)
		return
	}
	s.metrics.Job(string(job.Kind), "handler_failed")
	s.log.Error("Job handler failed", "job_id", job.ID, "kind", job.Kind,
		"attempt", job.AttemptsMade, "error", err)
	if recErr := s.store.RecordFailure(ctx, job.ID, err); recErr != nil {
		s.log.Warn("Unable to record job failure", "job_id", job.ID, "error", recErr)
	}
}

func safeHandle(ctx context.Context, handler contract.JobHandler, job domain.DelayedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, job)
}
