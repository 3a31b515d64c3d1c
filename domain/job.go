package domain

import "time"

type JobID string

// JobKind selects the handler a job is dispatched to.
type JobKind string

type JobState string

const (
	JobStateScheduled JobState = "scheduled"
	JobStateFired     JobState = "fired"
	JobStateCancelled JobState = "cancelled"
	JobStateFailed    JobState = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobState) IsTerminal() bool {
	return s != JobStateScheduled
}

func ParseJobState(s string) (JobState, bool) {
	switch JobState(s) {
	case JobStateScheduled, JobStateFired, JobStateCancelled, JobStateFailed:
		return JobState(s), true
	default:
		return "", false
	}
}

// Payload is the opaque job input captured at schedule time.
type Payload map[string]any

// DelayedJob is a persisted instruction to run a handler at or after FireAt.
// ID is derived from the business subject so that a cancel never needs a lookup.
type DelayedJob struct {
	ID              JobID
	Kind            JobKind
	Payload         Payload
	FireAt          time.Time
	State           JobState
	AttemptsAllowed int
	AttemptsMade    int
	LastError       string
	CreatedAt       time.Time
}

// IsDue reports whether the job may be claimed at now.
func (j DelayedJob) IsDue(now time.Time) bool {
	return j.State == JobStateScheduled && !now.Before(j.FireAt)
}

type ScheduleResult string

const (
	JobScheduled ScheduleResult = "scheduled"
	// JobSkipped means the fire time was not in the future. It is not an error.
	JobSkipped ScheduleResult = "skipped"
)

type CancelResult string

const (
	JobCancelled CancelResult = "cancelled"
	// JobNotFound covers unknown, already fired and already cancelled jobs.
	JobNotFound CancelResult = "not_found"
)
