package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"project-hub/auth"
	"project-hub/domain"
	"project-hub/errors"

	"github.com/gorilla/mux"
)

// handleNotifyRoom POST /v1/rooms/{roomId}/events
func (s *Server) handleNotifyRoom(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeNotify(w, r)
	if !ok {
		return
	}
	roomID := domain.RoomID(mux.Vars(r)["roomId"])
	if err := s.realtime.NotifyRoom(roomID, domain.EventName(req.Event), rawPayload(req.Payload)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleNotifyUser POST /v1/users/{userId}/events
func (s *Server) handleNotifyUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeNotify(w, r)
	if !ok {
		return
	}
	userID := domain.UserID(mux.Vars(r)["userId"])
	if err := s.realtime.NotifyUser(userID, domain.EventName(req.Event), rawPayload(req.Payload)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleJoinRoom POST /v1/users/{userId}/rooms
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req auth.JoinRoomRequest
	if !decode(w, r, &req) {
		return
	}
	if err := auth.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	userID := domain.UserID(mux.Vars(r)["userId"])
	if err := s.realtime.JoinRoom(r.Context(), userID, domain.RoomID(req.RoomID)); err != nil {
		s.log.Warn("Join room failed", "user_id", userID, "room_id", req.RoomID, "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScheduleReminder PUT /v1/reminders/{taskId}
func (s *Server) handleScheduleReminder(w http.ResponseWriter, r *http.Request) {
	var req auth.ReminderRequest
	if !decode(w, r, &req) {
		return
	}
	taskID := domain.TaskID(mux.Vars(r)["taskId"])
	result, err := s.reminders.ScheduleReminder(r.Context(), taskID, req.RecipientAddress, req.TaskTitle, req.DueAt)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if result == domain.JobScheduled {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{
		"jobId":  string(domain.ReminderJobID(taskID)),
		"result": string(result),
	})
}

// handleCancelReminder DELETE /v1/reminders/{taskId}
func (s *Server) handleCancelReminder(w http.ResponseWriter, r *http.Request) {
	taskID := domain.TaskID(mux.Vars(r)["taskId"])
	result, err := s.reminders.CancelReminder(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": result == domain.JobCancelled})
}

func (s *Server) decodeNotify(w http.ResponseWriter, r *http.Request) (auth.NotifyRequest, bool) {
	var req auth.NotifyRequest
	if !decode(w, r, &req) {
		return req, false
	}
	if err := auth.Validate(req); err != nil {
		writeError(w, err)
		return req, false
	}
	return req, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body", errors.ErrInvalidInput))
		return false
	}
	return true
}

// rawPayload forwards the payload untouched, absent payloads become null.
func rawPayload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
