package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"project-hub/errors"
	"strconv"
	"strings"
	"time"
)

const (
	reminderSubject = "Task Due Date Reminder"
	dueAtLayout     = "2 Jan 2006, 15:04 MST"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers reminders through a plain SMTP relay.
type SMTPSender struct {
	log      *slog.Logger
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	location *time.Location
	sendMail sendMailFunc
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Location *time.Location
}

func NewSMTPSender(log *slog.Logger, cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.ErrNoSMTPAddress
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		log:      log,
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:     cfg.Host,
		auth:     auth,
		from:     from,
		location: location,
		sendMail: smtp.SendMail,
	}, nil
}

func (s *SMTPSender) SendReminderEmail(ctx context.Context, recipientAddress, taskTitle string, dueAt time.Time) error {
	if recipientAddress == "" {
		return fmt.Errorf("%w: recipient address is required", errors.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, recipientAddress, reminderSubject, ReminderBody(taskTitle, dueAt, s.location))
	if err := s.sendMail(s.addr, s.auth, s.from, []string{recipientAddress}, msg); err != nil {
		return fmt.Errorf("send reminder to %s: %w", recipientAddress, err)
	}
	s.log.Info("Reminder email sent", "recipient", recipientAddress, "task_title", taskTitle)
	return nil
}

// ReminderBody renders the reminder text with the due date in the given location.
func ReminderBody(taskTitle string, dueAt time.Time, location *time.Location) string {
	return fmt.Sprintf("Reminder: Your task %q is due at %s.", taskTitle, dueAt.In(location).Format(dueAtLayout))
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body + "\r\n")
	return []byte(b.String())
}

// LogSender only logs reminders, used when no SMTP relay is configured.
type LogSender struct {
	log      *slog.Logger
	location *time.Location
}

func NewLogSender(log *slog.Logger, location *time.Location) *LogSender {
	if location == nil {
		location = time.UTC
	}
	return &LogSender{log: log, location: location}
}

func (s *LogSender) SendReminderEmail(_ context.Context, recipientAddress, taskTitle string, dueAt time.Time) error {
	s.log.Info("Reminder email (not sent, no SMTP relay)",
		"recipient", recipientAddress, "subject", reminderSubject,
		"body", ReminderBody(taskTitle, dueAt, s.location))
	return nil
}
