package repositories

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"project-hub/domain"
	"project-hub/errors"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	jobPrefix = "job:"
	duePrefix = "due:"
	// Save and Remove retry on write conflicts, Claim never does:
	// a conflicting claim means another worker touched the job first.
	maxConflictRetries = 5
)

// JobRepository persists delayed jobs in BadgerDB.
//
// Layout:
//   - "job:{jobID}" holds the record.
//   - "due:{unix_seconds}.{nanos}:{jobID}" indexes scheduled jobs by fire time,
//     zero padded to 19 and 9 digits so lexicographical order is chronological
//     for any fire time from 1970 to the end of time.Time.
//
// Badger transactions are serializable: two transactions reading and writing the
// same record cannot both commit, which is what makes Claim and Remove atomic.
type JobRepository struct {
	db        *badger.DB
	log       *slog.Logger
	retention time.Duration
}

// NewJobRepository builds the store. Terminal records expire after retention;
// zero keeps them forever.
func NewJobRepository(db *badger.DB, log *slog.Logger, retention time.Duration) *JobRepository {
	return &JobRepository{db: db, log: log, retention: retention}
}

func jobKey(jobID domain.JobID) []byte {
	return []byte(jobPrefix + string(jobID))
}

// dueKey sorts fire times before 1970 together at zero: they are all overdue.
func dueKey(fireAt time.Time, jobID domain.JobID) []byte {
	seconds, nanos := fireAt.Unix(), fireAt.Nanosecond()
	if seconds < 0 {
		seconds, nanos = 0, 0
	}
	return []byte(fmt.Sprintf("%s%019d.%09d:%s", duePrefix, seconds, nanos, jobID))
}

func parseDueKey(key []byte) (time.Time, domain.JobID, error) {
	rest := strings.TrimPrefix(string(key), duePrefix)
	stamp, id, ok := strings.Cut(rest, ":")
	if !ok {
		return time.Time{}, "", fmt.Errorf("malformed due key %q", key)
	}
	secPart, nanoPart, ok := strings.Cut(stamp, ".")
	if !ok {
		return time.Time{}, "", fmt.Errorf("malformed due key %q", key)
	}
	seconds, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed due key %q: %w", key, err)
	}
	nanos, err := strconv.ParseInt(nanoPart, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed due key %q: %w", key, err)
	}
	return time.Unix(seconds, nanos).UTC(), domain.JobID(id), nil
}

// isStaleDueKey reports whether key no longer indexes a scheduled job.
func isStaleDueKey(job domain.DelayedJob, key []byte) bool {
	return job.State != domain.JobStateScheduled || !bytes.Equal(dueKey(job.FireAt, job.ID), key)
}

// Save stores job as Scheduled, replacing any previous record with the same id.
// The previous fire time is unindexed so only the latest schedule can fire.
func (r *JobRepository) Save(ctx context.Context, job domain.DelayedJob) error {
	if job.ID == "" || job.Kind == "" {
		return fmt.Errorf("%w: id and kind are required", errors.ErrInvalidJob)
	}
	job.State = domain.JobStateScheduled
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		existing, err := getJob(txn, job.ID)
		switch {
		case err == nil:
			if existing.State == domain.JobStateScheduled {
				if err := txn.Delete(dueKey(existing.FireAt, existing.ID)); err != nil {
					return err
				}
			}
		case stderrors.Is(err, errors.ErrJobNotFound), stderrors.Is(err, errors.ErrCorruptedRecord):
		default:
			return err
		}
		if err := txn.Set(jobKey(job.ID), data); err != nil {
			return err
		}
		return txn.Set(dueKey(job.FireAt, job.ID), []byte(job.ID))
	})
}

// Remove cancels a scheduled job. It reports false when the job is unknown or
// already terminal, including when a worker claimed it first.
func (r *JobRepository) Remove(ctx context.Context, jobID domain.JobID) (bool, error) {
	var removed bool
	err := r.update(ctx, func(txn *badger.Txn) error {
		removed = false
		job, err := getJob(txn, jobID)
		if stderrors.Is(err, errors.ErrJobNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if job.State != domain.JobStateScheduled {
			return nil
		}
		if err := txn.Delete(dueKey(job.FireAt, jobID)); err != nil {
			return err
		}
		job.State = domain.JobStateCancelled
		if err := r.setTerminal(txn, job); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// Claim moves a due job from Scheduled to Fired. Only one caller can win:
// the others get ErrClaimLost.
func (r *JobRepository) Claim(ctx context.Context, jobID domain.JobID, now time.Time) (domain.DelayedJob, error) {
	if err := ctx.Err(); err != nil {
		return domain.DelayedJob{}, err
	}
	var claimed domain.DelayedJob
	err := r.db.Update(func(txn *badger.Txn) error {
		job, err := getJob(txn, jobID)
		if stderrors.Is(err, errors.ErrJobNotFound) {
			return errors.ErrClaimLost
		}
		if err != nil {
			return err
		}
		if !job.IsDue(now) {
			return errors.ErrClaimLost
		}
		if err := txn.Delete(dueKey(job.FireAt, jobID)); err != nil {
			return err
		}
		job.State = domain.JobStateFired
		job.AttemptsMade++
		if err := r.setTerminal(txn, job); err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if stderrors.Is(err, badger.ErrConflict) {
		return domain.DelayedJob{}, errors.ErrClaimLost
	}
	return claimed, err
}

// RecordFailure keeps the handler error on a fired job. The state is not changed.
func (r *JobRepository) RecordFailure(ctx context.Context, jobID domain.JobID, cause error) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		job, err := getJob(txn, jobID)
		if err != nil {
			return err
		}
		job.LastError = cause.Error()
		return r.setTerminal(txn, job)
	})
}

// Fail moves a scheduled job straight to Failed without running it.
// It reports false when the job is unknown or already terminal.
func (r *JobRepository) Fail(ctx context.Context, jobID domain.JobID, cause error) (bool, error) {
	var failed bool
	err := r.update(ctx, func(txn *badger.Txn) error {
		failed = false
		job, err := getJob(txn, jobID)
		if stderrors.Is(err, errors.ErrJobNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if job.State != domain.JobStateScheduled {
			return nil
		}
		if err := txn.Delete(dueKey(job.FireAt, jobID)); err != nil {
			return err
		}
		job.State = domain.JobStateFailed
		job.LastError = cause.Error()
		if err := r.setTerminal(txn, job); err != nil {
			return err
		}
		failed = true
		return nil
	})
	return failed, err
}

// ListDue returns scheduled jobs whose fire time is at or before now, oldest first.
// Index entries pointing to a replaced schedule are removed, undecodable records
// are marked Failed so they stop being polled.
func (r *JobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.DelayedJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var due []domain.DelayedJob
	var stale [][]byte
	corrupted := map[domain.JobID][]byte{}

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(duePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(due) >= limit {
				break
			}
			key := it.Item().KeyCopy(nil)
			fireAt, jobID, err := parseDueKey(key)
			if err != nil {
				stale = append(stale, key)
				continue
			}
			if fireAt.After(now) {
				break
			}
			job, err := getJob(txn, jobID)
			switch {
			case err == nil:
			case stderrors.Is(err, errors.ErrCorruptedRecord):
				corrupted[jobID] = key
				continue
			case stderrors.Is(err, errors.ErrJobNotFound):
				stale = append(stale, key)
				continue
			default:
				return err
			}
			if isStaleDueKey(job, key) {
				stale = append(stale, key)
				continue
			}
			due = append(due, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(stale) > 0 || len(corrupted) > 0 {
		r.cleanup(ctx, stale, corrupted)
	}
	return due, nil
}

// cleanup re-checks every key inside its own transaction: a job rescheduled
// since the scan may own the key again.
func (r *JobRepository) cleanup(ctx context.Context, stale [][]byte, corrupted map[domain.JobID][]byte) {
	err := r.update(ctx, func(txn *badger.Txn) error {
		for _, key := range stale {
			if _, jobID, err := parseDueKey(key); err == nil {
				job, err := getJob(txn, jobID)
				switch {
				case err == nil:
					if !isStaleDueKey(job, key) {
						continue
					}
				case stderrors.Is(err, errors.ErrJobNotFound), stderrors.Is(err, errors.ErrCorruptedRecord):
				default:
					return err
				}
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for jobID, key := range corrupted {
			if _, err := getJob(txn, jobID); !stderrors.Is(err, errors.ErrCorruptedRecord) {
				continue
			}
			r.log.Error("Undecodable job record marked failed", "job_id", jobID)
			data, err := failedRecord(jobID, errors.ErrCorruptedRecord)
			if err != nil {
				return err
			}
			if err := txn.SetEntry(r.entry(jobKey(jobID), data)); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Warn("Due index cleanup failed", "error", err)
	}
}

func (r *JobRepository) Get(ctx context.Context, jobID domain.JobID) (domain.DelayedJob, error) {
	if err := ctx.Err(); err != nil {
		return domain.DelayedJob{}, err
	}
	var job domain.DelayedJob
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		job, err = getJob(txn, jobID)
		return err
	})
	return job, err
}

// List returns every stored job, optionally restricted to one state.
// Undecodable records are skipped and logged.
func (r *JobRepository) List(ctx context.Context, state *domain.JobState) ([]domain.DelayedJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var jobs []domain.DelayedJob
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(jobPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				job, err := DecodeJob(val)
				if err != nil {
					r.log.Warn("Skipping undecodable job", "key", string(item.Key()), "error", err)
					return nil
				}
				if state == nil || job.State == *state {
					jobs = append(jobs, job)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return jobs, err
}

func (r *JobRepository) setTerminal(txn *badger.Txn, job domain.DelayedJob) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	return txn.SetEntry(r.entry(jobKey(job.ID), data))
}

func (r *JobRepository) entry(key, data []byte) *badger.Entry {
	e := badger.NewEntry(key, data)
	if r.retention > 0 {
		e = e.WithTTL(r.retention)
	}
	return e
}

// update retries fn on write conflicts so the caller gets a definitive answer.
func (r *JobRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Job store write conflict, retrying", "attempt", attempt+1)
	}
	return errors.ErrStoreConflict
}

func getJob(txn *badger.Txn, jobID domain.JobID) (domain.DelayedJob, error) {
	item, err := txn.Get(jobKey(jobID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.DelayedJob{}, errors.ErrJobNotFound
	}
	if err != nil {
		return domain.DelayedJob{}, err
	}
	var job domain.DelayedJob
	err = item.Value(func(val []byte) error {
		job, err = DecodeJob(val)
		return err
	})
	return job, err
}
