package ui

import (
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/powerchat/internal/auth"
	"github.com/jw6ventures/powerchat/internal/http/errors"
	"github.com/jw6ventures/powerchat/internal/meeting"
)

// AssistantContext is the readable state exposed to the assistant.
func (h *Handler) AssistantContext(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chat.List(r.Context(), h.cfg.ChatHistoryLimit)
	if err != nil {
		errors.JSONError(w, r, http.StatusInternalServerError, err, "Failed to load messages")
		return
	}
	errors.WriteJSON(w, r, http.StatusOK, map[string]any{
		"colleagues": h.calendar.Colleagues,
		"messages":   messages,
	})
}

// AssistantActions lists the tools the assistant may invoke.
func (h *Handler) AssistantActions(w http.ResponseWriter, r *http.Request) {
	errors.WriteJSON(w, r, http.StatusOK, map[string]any{
		"actions": []map[string]any{{
			"name":        meeting.CalendarAction.Name,
			"description": meeting.CalendarAction.Description,
			"parameters":  meeting.CalendarAction.Schema(),
		}},
	})
}

// ObserveMeeting receives each status report of a showCalendarMeeting call
// and returns what the widget should render.
func (h *Handler) ObserveMeeting(w http.ResponseWriter, r *http.Request) {
	var inv meeting.Invocation
	if err := decodeJSON(w, r, &inv); err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "Invalid invocation")
		return
	}
	sessionID := auth.SessionIDFromContext(r.Context())
	result, err := h.meetings.Observe(r.Context(), sessionID, currentUser(r).ID, inv)
	if stderrors.Is(err, meeting.ErrBadInvocation) {
		errors.JSONError(w, r, http.StatusBadRequest, err, "Invalid invocation")
		return
	}
	if err != nil {
		errors.JSONError(w, r, http.StatusInternalServerError, err, "Failed to process invocation")
		return
	}
	errors.WriteJSON(w, r, http.StatusOK, result)
}

// ShareMeeting posts a completed meeting's summary to the public chat.
func (h *Handler) ShareMeeting(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	msg, err := h.meetings.Share(r.Context(), sessionID, currentUser(r).ID, chi.URLParam(r, "invocationID"))
	switch {
	case err == nil:
		errors.WriteJSON(w, r, http.StatusCreated, msg)
	case stderrors.Is(err, meeting.ErrUnknownInvocation):
		errors.JSONError(w, r, http.StatusNotFound, nil, "Unknown meeting")
	case stderrors.Is(err, meeting.ErrNotCompleted):
		errors.JSONError(w, r, http.StatusConflict, nil, "Meeting is still being prepared")
	default:
		errors.JSONError(w, r, http.StatusInternalServerError, err, "Failed to share meeting")
	}
}
