package services

import (
	"context"
	"fmt"
	"log/slog"
	"project-hub/auth"
	"project-hub/contract"
	"project-hub/domain"
	"time"
)

type IReminderService interface {
	ScheduleReminder(ctx context.Context, taskID domain.TaskID, recipientAddress, taskTitle string,
		dueAt time.Time) (domain.ScheduleResult, error)
	CancelReminder(ctx context.Context, taskID domain.TaskID) (domain.CancelResult, error)
}

// ReminderService turns task due dates into delayed reminder jobs.
type ReminderService struct {
	log       *slog.Logger
	scheduler contract.IScheduler
}

func NewReminderService(log *slog.Logger, scheduler contract.IScheduler) IReminderService {
	return &ReminderService{log: log, scheduler: scheduler}
}

// ScheduleReminder plans a reminder 30 minutes before dueAt, replacing any
// reminder already planned for the task. A due date closer than that is skipped.
func (s *ReminderService) ScheduleReminder(ctx context.Context, taskID domain.TaskID,
	recipientAddress, taskTitle string, dueAt time.Time) (domain.ScheduleResult, error) {
	if err := auth.Validate(auth.ReminderRequest{
		TaskID:           string(taskID),
		RecipientAddress: recipientAddress,
		TaskTitle:        taskTitle,
		DueAt:            dueAt,
	}); err != nil {
		return "", err
	}
	reminder := domain.Reminder{
		TaskID:           taskID,
		RecipientAddress: recipientAddress,
		TaskTitle:        taskTitle,
		DueAt:            dueAt,
	}
	result, err := s.scheduler.Schedule(ctx, reminder.JobID(), domain.ReminderKind,
		reminder.ToPayload(), reminder.FireAt())
	if err != nil {
		return "", fmt.Errorf("schedule reminder for task %s: %w", taskID, err)
	}
	return result, nil
}

// CancelReminder drops the pending reminder of a task, typically once it is done.
func (s *ReminderService) CancelReminder(ctx context.Context, taskID domain.TaskID) (domain.CancelResult, error) {
	return s.scheduler.Cancel(ctx, domain.ReminderJobID(taskID))
}
