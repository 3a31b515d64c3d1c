package main

import (
	"context"
	"fmt"
	"log/slog"
	"project-hub/contract"
	"project-hub/internal"
	"project-hub/notifier"
	"project-hub/repositories"

	"github.com/dgraph-io/badger/v4"
)

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// buildSender picks the SMTP relay when one is configured, the log sender otherwise.
func buildSender(config internal.Config, logger *slog.Logger) (contract.IReminderSender, error) {
	location, err := config.Location()
	if err != nil {
		return nil, err
	}
	if config.SMTPHost == "" {
		logger.Warn("SMTP_HOST is empty, reminders will only be logged")
		return notifier.NewLogSender(logger, location), nil
	}
	return notifier.NewSMTPSender(logger, notifier.SMTPConfig{
		Host:     config.SMTPHost,
		Port:     config.SMTPPort,
		Username: config.SMTPUsername,
		Password: config.SMTPPassword,
		From:     config.SMTPFrom,
		Location: location,
	})
}

// jobMapper renders job records in the debug inspector.
func jobMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	job, err := repositories.DecodeJob(val)
	if err != nil {
		return row
	}
	row.Type = string(job.Kind)
	row.Timestamp = job.FireAt.UTC().Format("2006-01-02T15:04:05Z")
	row.Detail = fmt.Sprintf("state=%s attempts=%d/%d %s",
		job.State, job.AttemptsMade, job.AttemptsAllowed, job.LastError)
	return row
}
