package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"project-hub/domain"
	"project-hub/errors"
	"project-hub/mocks"
	"project-hub/repositories"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type countingHandler struct {
	calls atomic.Int32
	err   error
}

func (h *countingHandler) Handle(_ context.Context, _ domain.DelayedJob) error {
	h.calls.Add(1)
	return h.err
}

type panickingHandler struct{}

func (panickingHandler) Handle(_ context.Context, _ domain.DelayedJob) error {
	panic("boom")
}

func newTestScheduler(t *testing.T, clock *fakeClock) (*Scheduler, *repositories.JobRepository) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewJobRepository(openTestDB(t), log, time.Hour)
	return NewScheduler(log, store, nil, 3).WithClock(clock.Now), store
}

func TestScheduler_Schedule_In_The_Past_Is_Skipped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, store := newTestScheduler(t, clock)

	// When the fire time is now or earlier
	result, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now())
	req.NoError(err)
	req.Equal(domain.JobSkipped, result)
	result, err = scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(-time.Minute))
	req.NoError(err)
	req.Equal(domain.JobSkipped, result)

	// Then nothing is stored
	_, err = store.Get(ctx, "reminder-T1")
	req.ErrorIs(err, errors.ErrJobNotFound)
}

func TestScheduler_Schedule_Rejects_Missing_Id(t *testing.T) {
	req := require.New(t)
	clock := newFakeClock(time.Now())
	scheduler, _ := newTestScheduler(t, clock)

	_, err := scheduler.Schedule(context.Background(), "", domain.ReminderKind, nil, clock.Now().Add(time.Hour))

	req.ErrorIs(err, errors.ErrInvalidJob)
}

func TestScheduler_Fires_Once_When_Due(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, store := newTestScheduler(t, clock)
	handler := mocks.NewMockJobHandler(ctrl)
	scheduler.RegisterHandler(domain.ReminderKind, handler)

	// Given a job scheduled in ten minutes
	payload := domain.Payload{"recipientAddress": "alice@example.com"}
	result, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, payload, clock.Now().Add(10*time.Minute))
	req.NoError(err)
	req.Equal(domain.JobScheduled, result)

	// When polled too early nothing fires
	fired, err := scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(0, fired)

	// Then once due the handler sees the payload exactly once
	handler.EXPECT().Handle(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, job domain.DelayedJob) error {
			req.Equal(domain.JobID("reminder-T1"), job.ID)
			req.Equal("alice@example.com", job.Payload["recipientAddress"])
			req.Equal(domain.JobStateFired, job.State)
			return nil
		}).Times(1)
	clock.Advance(10 * time.Minute)
	fired, err = scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(1, fired)

	fired, err = scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(0, fired)

	job, err := store.Get(ctx, "reminder-T1")
	req.NoError(err)
	req.Equal(domain.JobStateFired, job.State)
}

func TestScheduler_Reschedule_Keeps_Only_Latest_Fire_Time(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, _ := newTestScheduler(t, clock)
	handler := &countingHandler{}
	scheduler.RegisterHandler(domain.ReminderKind, handler)

	_, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(10*time.Minute))
	req.NoError(err)
	_, err = scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(20*time.Minute))
	req.NoError(err)

	clock.Advance(15 * time.Minute)
	fired, err := scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(0, fired)

	clock.Advance(5 * time.Minute)
	fired, err = scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(1, fired)
	req.Equal(int32(1), handler.calls.Load())
}

func TestScheduler_Cancel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, _ := newTestScheduler(t, clock)
	handler := &countingHandler{}
	scheduler.RegisterHandler(domain.ReminderKind, handler)
	_, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(time.Minute))
	req.NoError(err)

	// When cancelled before firing
	result, err := scheduler.Cancel(ctx, "reminder-T1")
	req.NoError(err)
	req.Equal(domain.JobCancelled, result)

	// Then it never fires and a second cancel finds nothing
	clock.Advance(time.Hour)
	fired, err := scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(0, fired)
	req.Equal(int32(0), handler.calls.Load())

	result, err = scheduler.Cancel(ctx, "reminder-T1")
	req.NoError(err)
	req.Equal(domain.JobNotFound, result)
	result, err = scheduler.Cancel(ctx, "reminder-never-scheduled")
	req.NoError(err)
	req.Equal(domain.JobNotFound, result)
}

func TestScheduler_Cancel_After_Fire_Is_Not_Found(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, _ := newTestScheduler(t, clock)
	scheduler.RegisterHandler(domain.ReminderKind, &countingHandler{})
	_, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(time.Minute))
	req.NoError(err)
	clock.Advance(time.Minute)
	_, err = scheduler.FireDue(ctx, 10)
	req.NoError(err)

	result, err := scheduler.Cancel(ctx, "reminder-T1")

	req.NoError(err)
	req.Equal(domain.JobNotFound, result)
}

func TestScheduler_Handler_Failure_Is_Recorded_Not_Retried(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, store := newTestScheduler(t, clock)
	handler := &countingHandler{err: stderrors.New("smtp unavailable")}
	scheduler.RegisterHandler(domain.ReminderKind, handler)
	_, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(time.Minute))
	req.NoError(err)
	clock.Advance(time.Minute)

	// When the handler fails, the poll itself still succeeds
	fired, err := scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(1, fired)

	// Then the failure is kept on the job
	job, err := store.Get(ctx, "reminder-T1")
	req.NoError(err)
	req.Equal(domain.JobStateFired, job.State)
	req.Equal("smtp unavailable", job.LastError)

	// And the job does not fire again
	clock.Advance(time.Hour)
	_, err = scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(int32(1), handler.calls.Load())
}

func TestScheduler_Handler_Panic_Is_Recorded(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, store := newTestScheduler(t, clock)
	scheduler.RegisterHandler(domain.ReminderKind, panickingHandler{})
	_, err := scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(time.Minute))
	req.NoError(err)
	clock.Advance(time.Minute)

	fired, err := scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(1, fired)

	job, err := store.Get(ctx, "reminder-T1")
	req.NoError(err)
	req.Contains(job.LastError, "boom")
}

func TestScheduler_Unknown_Kind_Is_Marked_Failed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, store := newTestScheduler(t, clock)
	_, err := scheduler.Schedule(ctx, "digest-1", "digest", nil, clock.Now().Add(time.Minute))
	req.NoError(err)
	clock.Advance(time.Minute)

	settled, err := scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(1, settled)

	job, err := store.Get(ctx, "digest-1")
	req.NoError(err)
	req.Equal(domain.JobStateFailed, job.State)
	req.Contains(job.LastError, "digest")

	// Then it is not polled again
	settled, err = scheduler.FireDue(ctx, 10)
	req.NoError(err)
	req.Equal(0, settled)
}

func TestScheduler_Unknown_Kinds_Do_Not_Block_Later_Jobs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, _ := newTestScheduler(t, clock)
	handler := &countingHandler{}
	scheduler.RegisterHandler(domain.ReminderKind, handler)

	// Given a full batch of unhandled jobs ahead of a reminder
	_, err := scheduler.Schedule(ctx, "other-1", "other", nil, clock.Now().Add(time.Minute))
	req.NoError(err)
	_, err = scheduler.Schedule(ctx, "other-2", "other", nil, clock.Now().Add(2*time.Minute))
	req.NoError(err)
	_, err = scheduler.Schedule(ctx, "reminder-T1", domain.ReminderKind, nil, clock.Now().Add(3*time.Minute))
	req.NoError(err)
	clock.Advance(time.Hour)

	// When polling with a batch of two
	for i := 0; i < 3; i++ {
		_, err := scheduler.FireDue(ctx, 2)
		req.NoError(err)
	}

	// Then the reminder still fires once
	req.Equal(int32(1), handler.calls.Load())
}

func TestScheduler_Concurrent_Pollers_Fire_Each_Job_Once(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	scheduler, _ := newTestScheduler(t, clock)
	handler := &countingHandler{}
	scheduler.RegisterHandler(domain.ReminderKind, handler)
	for _, id := range []domain.JobID{"reminder-T1", "reminder-T2", "reminder-T3"} {
		_, err := scheduler.Schedule(ctx, id, domain.ReminderKind, nil, clock.Now().Add(time.Minute))
		req.NoError(err)
	}
	clock.Advance(time.Minute)

	var total atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired, err := scheduler.FireDue(ctx, 10)
			if err == nil {
				total.Add(int32(fired))
			}
		}()
	}
	wg.Wait()

	req.Equal(int32(3), handler.calls.Load())
	req.Equal(int32(3), total.Load())
}

func TestScheduler_Claim_Lost_Is_Skipped(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIJobStore(ctrl)
	handler := mocks.NewMockJobHandler(ctrl)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	scheduler := NewScheduler(slog.Default(), store, nil, 0).WithClock(func() time.Time { return now })
	scheduler.RegisterHandler(domain.ReminderKind, handler)
	due := domain.DelayedJob{ID: "reminder-T1", Kind: domain.ReminderKind, FireAt: now, State: domain.JobStateScheduled}

	// Given another poller wins the claim
	store.EXPECT().ListDue(gomock.Any(), now, 5).Return([]domain.DelayedJob{due}, nil)
	store.EXPECT().Claim(gomock.Any(), domain.JobID("reminder-T1"), now).Return(domain.DelayedJob{}, errors.ErrClaimLost)
	handler.EXPECT().Handle(gomock.Any(), gomock.Any()).Times(0)

	fired, err := scheduler.FireDue(ctx, 5)

	req.NoError(err)
	req.Equal(0, fired)
}
