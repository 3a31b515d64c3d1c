package repositories

import (
	"fmt"
	"project-hub/domain"
	"project-hub/errors"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Record field names, shared with anything reading the store directly.
const (
	fieldID              = "id"
	fieldKind            = "kind"
	fieldPayload         = "payload"
	fieldFireAt          = "fire_at"
	fieldState           = "state"
	fieldAttemptsAllowed = "attempts_allowed"
	fieldAttemptsMade    = "attempts_made"
	fieldLastError       = "last_error"
	fieldCreatedAt       = "created_at"
)

// encodeJob serialises a job as a protobuf Struct so the payload stays schemaless.
func encodeJob(job domain.DelayedJob) ([]byte, error) {
	payload := map[string]any{}
	for k, v := range job.Payload {
		payload[k] = v
	}
	record, err := structpb.NewStruct(map[string]any{
		fieldID:              string(job.ID),
		fieldKind:            string(job.Kind),
		fieldPayload:         payload,
		fieldFireAt:          formatTime(job.FireAt),
		fieldState:           string(job.State),
		fieldAttemptsAllowed: job.AttemptsAllowed,
		fieldAttemptsMade:    job.AttemptsMade,
		fieldLastError:       job.LastError,
		fieldCreatedAt:       formatTime(job.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return proto.Marshal(record)
}

// DecodeJob reads a stored job record. Any failure is ErrCorruptedRecord.
func DecodeJob(data []byte) (domain.DelayedJob, error) {
	var record structpb.Struct
	if err := proto.Unmarshal(data, &record); err != nil {
		return domain.DelayedJob{}, fmt.Errorf("%w: %v", errors.ErrCorruptedRecord, err)
	}
	fields := record.GetFields()

	state, ok := domain.ParseJobState(fields[fieldState].GetStringValue())
	if !ok {
		return domain.DelayedJob{}, fmt.Errorf("%w: unknown state %q",
			errors.ErrCorruptedRecord, fields[fieldState].GetStringValue())
	}
	fireAt, err := parseTime(fields[fieldFireAt].GetStringValue())
	if err != nil {
		return domain.DelayedJob{}, fmt.Errorf("%w: fire_at: %v", errors.ErrCorruptedRecord, err)
	}
	createdAt, err := parseTime(fields[fieldCreatedAt].GetStringValue())
	if err != nil {
		return domain.DelayedJob{}, fmt.Errorf("%w: created_at: %v", errors.ErrCorruptedRecord, err)
	}

	var payload domain.Payload
	if s := fields[fieldPayload].GetStructValue(); s != nil {
		payload = s.AsMap()
	}

	return domain.DelayedJob{
		ID:              domain.JobID(fields[fieldID].GetStringValue()),
		Kind:            domain.JobKind(fields[fieldKind].GetStringValue()),
		Payload:         payload,
		FireAt:          fireAt,
		State:           state,
		AttemptsAllowed: int(fields[fieldAttemptsAllowed].GetNumberValue()),
		AttemptsMade:    int(fields[fieldAttemptsMade].GetNumberValue()),
		LastError:       fields[fieldLastError].GetStringValue(),
		CreatedAt:       createdAt,
	}, nil
}

// failedRecord replaces a record that can no longer be decoded.
func failedRecord(jobID domain.JobID, cause error) ([]byte, error) {
	record, err := structpb.NewStruct(map[string]any{
		fieldID:           string(jobID),
		fieldState:        string(domain.JobStateFailed),
		fieldLastError:    cause.Error(),
		fieldFireAt:       "",
		fieldCreatedAt:    formatTime(time.Now()),
		fieldPayload:      map[string]any{},
		fieldKind:         "",
		fieldAttemptsMade: 0,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(record)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
