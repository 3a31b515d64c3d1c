package auth

import (
	"encoding/json"
	"fmt"
	"project-hub/errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// NotifyRequest is the body of the room and user event endpoints.
type NotifyRequest struct {
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type ReminderRequest struct {
	TaskID           string    `json:"-" validate:"required,max=128"`
	RecipientAddress string    `json:"recipientAddress" validate:"required,email"`
	TaskTitle        string    `json:"taskTitle" validate:"required,max=512"`
	DueAt            time.Time `json:"dueAt" validate:"required"`
}

// Validate checks struct tags and reports failures as ErrInvalidInput.
func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}
