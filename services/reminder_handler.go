package services

import (
	"context"
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
)

// ReminderHandler runs fired reminder jobs.
type ReminderHandler struct {
	log    *slog.Logger
	sender contract.IReminderSender
}

func NewReminderHandler(log *slog.Logger, sender contract.IReminderSender) *ReminderHandler {
	return &ReminderHandler{log: log, sender: sender}
}

func (h *ReminderHandler) Handle(ctx context.Context, job domain.DelayedJob) error {
	reminder, err := domain.ReminderFromPayload(job.Payload)
	if err != nil {
		return err
	}
	h.log.Debug("Sending reminder", "job_id", job.ID, "task_id", reminder.TaskID)
	return h.sender.SendReminderEmail(ctx, reminder.RecipientAddress, reminder.TaskTitle, reminder.DueAt)
}
