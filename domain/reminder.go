package domain

import (
	"fmt"
	"project-hub/errors"
	"time"
)

const (
	ReminderKind JobKind = "reminder"
	// ReminderLeadTime is subtracted from a task due date to get the fire time.
	ReminderLeadTime = 30 * time.Minute
	reminderPrefix   = "reminder-"
)

// ReminderJobID derives the job id of a task reminder.
// At most one reminder is outstanding per task.
func ReminderJobID(taskID TaskID) JobID {
	return JobID(reminderPrefix + string(taskID))
}

// Reminder asks the notification sender to warn a recipient about a due task.
type Reminder struct {
	TaskID           TaskID
	RecipientAddress string
	TaskTitle        string
	DueAt            time.Time
}

func (r Reminder) JobID() JobID {
	return ReminderJobID(r.TaskID)
}

func (r Reminder) FireAt() time.Time {
	return r.DueAt.Add(-ReminderLeadTime)
}

func (r Reminder) ToPayload() Payload {
	return Payload{
		"taskId":           string(r.TaskID),
		"recipientAddress": r.RecipientAddress,
		"taskTitle":        r.TaskTitle,
		"dueAt":            r.DueAt.UTC().Format(time.RFC3339Nano),
	}
}

// ReminderFromPayload rebuilds a reminder from the payload captured at schedule time.
func ReminderFromPayload(p Payload) (Reminder, error) {
	taskID, _ := p["taskId"].(string)
	recipient, _ := p["recipientAddress"].(string)
	title, _ := p["taskTitle"].(string)
	rawDueAt, _ := p["dueAt"].(string)
	if recipient == "" || rawDueAt == "" {
		return Reminder{}, fmt.Errorf("%w: reminder needs recipientAddress and dueAt", errors.ErrInvalidPayload)
	}
	dueAt, err := time.Parse(time.RFC3339Nano, rawDueAt)
	if err != nil {
		return Reminder{}, fmt.Errorf("%w: dueAt: %v", errors.ErrInvalidPayload, err)
	}
	return Reminder{
		TaskID:           TaskID(taskID),
		RecipientAddress: recipient,
		TaskTitle:        title,
		DueAt:            dueAt,
	}, nil
}
