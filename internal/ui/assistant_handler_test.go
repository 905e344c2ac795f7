package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jw6ventures/powerchat/internal/meeting"
	"github.com/jw6ventures/powerchat/internal/store"
)

func observe(env *testEnv, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/assistant/actions/showCalendarMeeting", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ObserveMeeting(rec, authed(req, 1))
	return rec
}

func TestAssistantContext(t *testing.T) {
	env := newTestEnv(t)
	env.messages.Create(context.Background(), store.Message{UserID: 1, Content: "hello"})

	rec := httptest.NewRecorder()
	env.handler.AssistantContext(rec, authed(httptest.NewRequest(http.MethodGet, "/api/assistant/context", nil), 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Colleagues []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"colleagues"`
		Messages []store.Message `json:"messages"`
	}
	decodeBody(t, rec, &out)
	if len(out.Colleagues) != 3 || out.Colleagues[0].Name != "John Doe" || out.Colleagues[2].Role != "Product Manager" {
		t.Fatalf("colleagues = %+v", out.Colleagues)
	}
	if len(out.Messages) != 1 || out.Messages[0].Content != "hello" {
		t.Fatalf("messages = %+v", out.Messages)
	}
}

func TestAssistantActions(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handler.AssistantActions(rec, httptest.NewRequest(http.MethodGet, "/api/assistant/actions", nil))

	var out struct {
		Actions []struct {
			Name       string `json:"name"`
			Parameters struct {
				Required []string `json:"required"`
			} `json:"parameters"`
		} `json:"actions"`
	}
	decodeBody(t, rec, &out)
	if len(out.Actions) != 1 || out.Actions[0].Name != meeting.ActionName {
		t.Fatalf("actions = %+v", out.Actions)
	}
	if got := strings.Join(out.Actions[0].Parameters.Required, ","); got != "date,time,meetingName" {
		t.Fatalf("required = %s", got)
	}
}

func TestObserveMeetingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	args := `"args":{"date":"2025-03-20","time":"14:00","meetingName":"AI Model Training Session"}`

	var running meeting.Result
	rec := observe(env, `{"id":"call-1","status":"inProgress",`+args+`}`)
	decodeBody(t, rec, &running)
	if rec.Code != http.StatusOK || running.State != meeting.StateRunning || !running.Loading {
		t.Fatalf("in progress: status = %d, result = %+v", rec.Code, running)
	}
	if len(env.tasks.tasks) != 0 {
		t.Fatalf("task persisted before completion")
	}

	var done meeting.Result
	for i := 0; i < 3; i++ {
		rec = observe(env, `{"id":"call-1","status":"complete",`+args+`}`)
		decodeBody(t, rec, &done)
	}
	if done.State != meeting.StateCompleted || done.TaskID == "" || done.TaskURL != "/ai-tasks/"+done.TaskID || done.Warning != "" {
		t.Fatalf("complete: result = %+v", done)
	}
	if len(env.tasks.tasks) != 1 {
		t.Fatalf("persisted %d tasks, want exactly 1", len(env.tasks.tasks))
	}

	share := httptest.NewRecorder()
	req := withURLParam(authed(httptest.NewRequest(http.MethodPost, "/api/assistant/actions/showCalendarMeeting/call-1/share", nil), 1), "invocationID", "call-1")
	env.handler.ShareMeeting(share, req)
	if share.Code != http.StatusCreated {
		t.Fatalf("share status = %d, body = %s", share.Code, share.Body.String())
	}
	var msg store.Message
	decodeBody(t, share, &msg)
	want := "AI Model Training Session is scheduled for 2025-03-20 at 14:00. Details: https://chat.example.com/ai-tasks/" + done.TaskID
	if msg.Content != want {
		t.Fatalf("shared %q, want %q", msg.Content, want)
	}
}

func TestObserveMeetingPersistFailure(t *testing.T) {
	env := newTestEnv(t)
	env.tasks.createErr = errors.New("db down")

	var res meeting.Result
	rec := observe(env, `{"id":"call-2","status":"complete","args":{"date":"2025-03-20","time":"09:00","meetingName":"Quarterly Review"}}`)
	decodeBody(t, rec, &res)
	if rec.Code != http.StatusOK || res.TaskID != "" || res.Warning == "" || res.Card == nil || res.Card.MeetingName != "Quarterly Review" {
		t.Fatalf("result = %+v", res)
	}
}

func TestObserveMeetingRejectsBadInvocations(t *testing.T) {
	env := newTestEnv(t)
	for name, body := range map[string]string{
		"missing id":     `{"status":"complete","args":{}}`,
		"unknown status": `{"id":"x","status":"done","args":{}}`,
		"not json":       `status=complete`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := observe(env, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestShareMeetingErrors(t *testing.T) {
	env := newTestEnv(t)
	observe(env, `{"id":"call-3","status":"executing","args":{}}`)

	tests := []struct {
		id   string
		want int
	}{
		{"call-3", http.StatusConflict},
		{"never-seen", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			req := withURLParam(authed(httptest.NewRequest(http.MethodPost, "/share", nil), 1), "invocationID", tt.id)
			rec := httptest.NewRecorder()
			env.handler.ShareMeeting(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
