package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/powerchat/internal/blob"
	"github.com/jw6ventures/powerchat/internal/chat"
	"github.com/jw6ventures/powerchat/internal/config"
	"github.com/jw6ventures/powerchat/internal/dashboard"
	httperrors "github.com/jw6ventures/powerchat/internal/http/errors"
	"github.com/jw6ventures/powerchat/internal/ics"
	"github.com/jw6ventures/powerchat/internal/meeting"
	"github.com/jw6ventures/powerchat/internal/store"
)

const recentTaskLimit = 20

// Handler serves server-rendered HTML pages and the browser JSON API.
type Handler struct {
	cfg       *config.Config
	store     *store.Store
	chat      *chat.Service
	meetings  *meeting.Pipeline
	blobs     blob.Store
	calendar  *dashboard.Calendar
	templates map[string]*template.Template
	now       func() time.Time
}

func NewHandler(cfg *config.Config, st *store.Store, chatService *chat.Service, meetings *meeting.Pipeline, blobs blob.Store, calendar *dashboard.Calendar) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     st,
		chat:      chatService,
		meetings:  meetings,
		blobs:     blobs,
		calendar:  calendar,
		templates: templates,
		now:       time.Now,
	}
}

// Chat renders the public chat view.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	data := map[string]any{
		"Title":      "Chat",
		"User":       user,
		"Colleagues": h.calendar.Colleagues,
	}
	messages, err := h.chat.List(r.Context(), h.cfg.ChatHistoryLimit)
	if err != nil {
		httperrors.LogError(r, "failed to load messages", err)
		data["FlashError"] = "Failed to load messages."
	}
	data["Messages"] = messages
	h.withFlash(r, data)
	h.render(w, r, "chat.html", data)
}

type taskRow struct {
	Path      string
	Name      string
	Status    store.TaskStatus
	CreatedAt time.Time
}

// Tasks renders the calendar dashboard and the viewer's saved meetings.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	selected := h.calendar.ParseDay(r.URL.Query().Get("date"))

	tasks, err := h.store.Tasks.ListByUser(r.Context(), user.ID, recentTaskLimit)
	if err != nil {
		httperrors.LogError(r, "failed to load tasks", err)
	}
	rows := make([]taskRow, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, taskRow{
			Path:      meeting.TaskPath(t.ID),
			Name:      meetingParams(&t).MeetingName,
			Status:    t.Status,
			CreatedAt: t.CreatedAt,
		})
	}

	data := map[string]any{
		"Title":      "Tasks",
		"User":       user,
		"MonthLabel": fmt.Sprintf("%s %d", h.calendar.Month, h.calendar.Year),
		"Weeks":      h.calendar.Weeks(selected),
		"Selected":   selected,
		"Tasks":      rows,
	}
	if !selected.IsZero() {
		data["DayEvents"] = h.calendar.EventsOn(selected)
	}
	h.render(w, r, "tasks.html", h.withFlash(r, data))
}

type paramRow struct {
	Key   string
	Value string
}

// ViewTask renders one task's parameters and the add-to-calendar form.
func (h *Handler) ViewTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	params := meetingParams(task)
	id := task.ID
	data := map[string]any{
		"Title":        "Task",
		"User":         currentUser(r),
		"Task":         task,
		"Rows":         parameterRows(task.Parameters),
		"CanDeliver":   params.Validate() == nil,
		"FileName":     ics.FileName(params.MeetingName),
		"CalendarPath": meeting.TaskPath(id) + "/calendar",
		"DownloadPath": meeting.TaskPath(id) + "/event.ics",
		"NativeHint":   ics.DetectNativeCalendar(r.UserAgent(), 0),
	}
	h.render(w, r, "ai_task.html", h.withFlash(r, data))
}

// loadTask resolves {id} to a task owned by the viewer, writing the error
// response itself when it cannot.
func (h *Handler) loadTask(w http.ResponseWriter, r *http.Request) (*store.Task, bool) {
	user := currentUser(r)
	task, err := h.store.Tasks.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && task.UserID != user.ID) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to load task")
		return nil, false
	}
	return task, true
}

// meetingParams decodes the stored parameters. Anything unreadable yields
// empty parameters, which fail validation downstream.
func meetingParams(task *store.Task) ics.MeetingParameters {
	var p ics.MeetingParameters
	if len(task.Parameters) > 0 {
		_ = json.Unmarshal(task.Parameters, &p)
	}
	return p
}

func parameterRows(raw json.RawMessage) []paramRow {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	rows := make([]paramRow, 0, len(fields))
	for k, v := range fields {
		value := fmt.Sprint(v)
		if s, ok := v.(string); ok {
			value = s
		}
		rows = append(rows, paramRow{Key: k, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}
