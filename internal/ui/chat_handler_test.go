package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/jw6ventures/powerchat/internal/blob"
	"github.com/jw6ventures/powerchat/internal/ics"
	"github.com/jw6ventures/powerchat/internal/store"
)

type part struct {
	field, filename, contentType, body string
}

func multipartRequest(t *testing.T, target string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			if err := mw.WriteField(p.field, p.body); err != nil {
				t.Fatal(err)
			}
			continue
		}
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		hdr.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(p.body))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req, 1)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &out)
	return out.Error
}

func TestListMessages(t *testing.T) {
	env := newTestEnv(t)
	for _, c := range []string{"one", "two", "three"} {
		env.messages.Create(context.Background(), store.Message{UserID: 1, Content: c})
	}

	rec := httptest.NewRecorder()
	env.handler.ListMessages(rec, authed(httptest.NewRequest(http.MethodGet, "/api/messages?limit=2", nil), 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Messages []store.Message `json:"messages"`
	}
	decodeBody(t, rec, &out)
	if len(out.Messages) != 2 || out.Messages[0].Content != "two" || out.Messages[1].Content != "three" {
		t.Fatalf("messages = %+v", out.Messages)
	}
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantError   string
	}{
		{"json", "application/json", `{"content":"  hi there "}`, http.StatusCreated, ""},
		{"form", "application/x-www-form-urlencoded", url.Values{"content": {"hi there"}}.Encode(), http.StatusCreated, ""},
		{"blank", "application/json", `{"content":"   "}`, http.StatusBadRequest, "Message cannot be empty"},
		{"too long", "application/json", `{"content":"` + strings.Repeat("x", 4001) + `"}`, http.StatusBadRequest, "Message is too long"},
		{"malformed", "application/json", `{"content":`, http.StatusBadRequest, "Invalid message"},
		{"trailing data", "application/json", `{"content":"a"}{"content":"b"}`, http.StatusBadRequest, "Invalid message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			sub := env.hub.Subscribe()
			defer sub.Close()

			req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			env.handler.SendMessage(rec, authed(req, 1))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				if got := errorOf(t, rec); got != tt.wantError {
					t.Fatalf("error = %q, want %q", got, tt.wantError)
				}
				if len(env.messages.messages) != 0 {
					t.Fatalf("rejected message was stored")
				}
				return
			}
			var msg store.Message
			decodeBody(t, rec, &msg)
			if msg.Content != "hi there" || msg.UserID != 1 {
				t.Fatalf("message = %+v", msg)
			}
			select {
			case got := <-sub.C():
				if got.ID != msg.ID {
					t.Fatalf("published %d, want %d", got.ID, msg.ID)
				}
			default:
				t.Fatalf("message was not published to subscribers")
			}
		})
	}
}

// pngBody is the start of a PNG file, enough for content sniffing.
const pngBody = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"

const htmlBody = "<script>alert(document.cookie)</script>"

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing filename", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.UploadImage(rec, multipartRequest(t, "/api/upload-image", part{field: "file", filename: "a.png", contentType: "image/png", body: pngBody}))
		if rec.Code != http.StatusBadRequest || errorOf(t, rec) != "Filename is required" {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.UploadImage(rec, multipartRequest(t, "/api/upload-image?filename=a.png", part{field: "other", body: "x"}))
		if rec.Code != http.StatusBadRequest || errorOf(t, rec) != "File is required" {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("stored under prefix", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.UploadImage(rec, multipartRequest(t, "/api/upload-image?filename=cat%20photo.png", part{field: "file", filename: "cat photo.png", contentType: "text/plain", body: pngBody}))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var out blob.Blob
		decodeBody(t, rec, &out)
		if out.Pathname != "powerchat/1742457600000-cat_photo.png" ||
			out.URL != "https://chat.example.com/blobs/powerchat/1742457600000-cat_photo.png" ||
			out.ContentType != "image/png" || out.Size != int64(len(pngBody)) {
			t.Fatalf("blob = %+v", out)
		}
	})

	t.Run("html is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.UploadImage(rec, multipartRequest(t, "/api/upload-image?filename=evil.html", part{field: "file", filename: "evil.html", contentType: "image/png", body: htmlBody}))
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if _, err := env.blobs.Open(context.Background(), "powerchat/1742457600000-evil.html"); err == nil {
			t.Fatalf("html upload was stored")
		}
	})

	t.Run("name follows sniffed type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.handler.UploadImage(rec, multipartRequest(t, "/api/upload-image?filename=page.html", part{field: "file", filename: "page.html", contentType: "text/html", body: pngBody}))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var out blob.Blob
		decodeBody(t, rec, &out)
		if out.Pathname != "powerchat/1742457600000-page.png" {
			t.Fatalf("pathname = %q", out.Pathname)
		}
	})

	t.Run("existing key is not replaced", func(t *testing.T) {
		first := httptest.NewRecorder()
		env.handler.UploadImage(first, multipartRequest(t, "/api/upload-image?filename=team.png", part{field: "file", filename: "team.png", body: pngBody + "original"}))
		if first.Code != http.StatusOK {
			t.Fatalf("first upload: status = %d, body = %s", first.Code, first.Body.String())
		}
		second := httptest.NewRecorder()
		env.handler.UploadImage(second, multipartRequest(t, "/api/upload-image?filename=team.png", part{field: "file", filename: "team.png", body: pngBody + "replacement"}))
		if second.Code != http.StatusConflict {
			t.Fatalf("second upload: status = %d, body = %s", second.Code, second.Body.String())
		}

		obj, err := env.blobs.Open(context.Background(), "powerchat/1742457600000-team.png")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer obj.Close()
		data, _ := io.ReadAll(obj)
		if string(data) != pngBody+"original" {
			t.Fatalf("stored content = %q", data)
		}
	})

	t.Run("too large", func(t *testing.T) {
		env.handler.cfg.Storage.MaxUploadBytes = 4
		small, _ := blob.NewFSStore(t.TempDir(), "https://chat.example.com", 4)
		env.handler.blobs = small
		rec := httptest.NewRecorder()
		env.handler.UploadImage(rec, multipartRequest(t, "/api/upload-image?filename=a.png", part{field: "file", filename: "a.png", contentType: "image/png", body: pngBody}))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})
}

func TestPostChat(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.PostChat(rec, multipartRequest(t, "/api/chat",
		part{field: "messages", body: `{"role":"user","content":"earlier"}`},
		part{field: "messages", body: `{"role":"user","content":"look at this"}`},
		part{field: "attachments", filename: "cat.png", contentType: "image/png", body: pngBody},
	))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.messages.messages) != 1 {
		t.Fatalf("stored %d messages, want 1", len(env.messages.messages))
	}
	msg := env.messages.messages[0]
	wantURL := "https://chat.example.com/blobs/powerchat/1742457600000-cat.png"
	if msg.Content != "look at this" || msg.ImageURL == nil || *msg.ImageURL != wantURL {
		t.Fatalf("message = %+v", msg)
	}

	rec = httptest.NewRecorder()
	env.handler.PostChat(rec, multipartRequest(t, "/api/chat",
		part{field: "messages", body: `{"content":""}`},
		part{field: "attachments", filename: "dog.png", contentType: "image/png", body: pngBody},
	))
	if rec.Code != http.StatusCreated || env.messages.messages[1].Content != "Sent an image" {
		t.Fatalf("image without caption: status = %d, messages = %+v", rec.Code, env.messages.messages)
	}

	for name, parts := range map[string][]part{
		"no messages":   {{field: "attachments", filename: "a.png", contentType: "image/png", body: pngBody}},
		"invalid json":  {{field: "messages", body: "{"}},
		"empty content": {{field: "messages", body: `{"content":" "}`}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.handler.PostChat(rec, multipartRequest(t, "/api/chat", parts...))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPostChatRejectsNonImageAttachment(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handler.PostChat(rec, multipartRequest(t, "/api/chat",
		part{field: "messages", body: `{"content":"open this"}`},
		part{field: "attachments", filename: "evil.html", contentType: "image/png", body: htmlBody},
	))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(env.messages.messages) != 0 {
		t.Fatalf("stored %d messages, want 0", len(env.messages.messages))
	}
}

func TestUploadCalendar(t *testing.T) {
	env := newTestEnv(t)
	doc, err := ics.Build("task-1", ics.MeetingParameters{Date: "2025-03-20", Time: "09:00", MeetingName: "Quarterly Review"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	env.handler.UploadCalendar(rec, multipartRequest(t, "/api/upload",
		part{field: "messages", body: `{"content":"Calendar event ICS"}`},
		part{field: "attachments", filename: "Quarterly_Review.ics", contentType: ics.ContentType, body: doc},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	decodeBody(t, rec, &out)
	if !out.Success || out.URL != "https://chat.example.com/blobs/powerchat/1742457600000-Quarterly_Review.ics" {
		t.Fatalf("response = %+v", out)
	}

	rec = httptest.NewRecorder()
	env.handler.UploadCalendar(rec, multipartRequest(t, "/api/upload",
		part{field: "attachments", filename: "notes.ics", contentType: ics.ContentType, body: "not a calendar"},
	))
	if rec.Code != http.StatusBadRequest || errorOf(t, rec) != "Invalid calendar file" {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.UploadCalendar(rec, multipartRequest(t, "/api/upload", part{field: "messages", body: "{}"}))
	if rec.Code != http.StatusBadRequest || errorOf(t, rec) != "File is required" {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestServeBlob(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.blobs.Put(context.Background(), "powerchat/1-a.ics", "", strings.NewReader("BEGIN:VCALENDAR")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key        string
		wantStatus int
	}{
		{"powerchat/1-a.ics", http.StatusOK},
		{"powerchat/missing.png", http.StatusNotFound},
		{"../etc/passwd", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			req := withURLParam(httptest.NewRequest(http.MethodGet, "/blobs/x", nil), "*", tt.key)
			rec := httptest.NewRecorder()
			env.handler.ServeBlob(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if rec.Header().Get("Content-Type") != ics.ContentType || rec.Body.String() != "BEGIN:VCALENDAR" {
					t.Fatalf("headers = %v, body = %q", rec.Header(), rec.Body.String())
				}
			}
		})
	}
}

func TestServeBlobContentPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for key, body := range map[string]string{
		"powerchat/1-team.png":  pngBody,
		"powerchat/1-a.ics":     "BEGIN:VCALENDAR",
		"powerchat/1-evil.html": htmlBody,
		"powerchat/1-logo.svg":  "<svg></svg>",
	} {
		if _, err := env.blobs.Put(ctx, key, "", strings.NewReader(body)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		key         string
		contentType string
		attachment  bool
	}{
		{"powerchat/1-team.png", "image/png", false},
		{"powerchat/1-a.ics", ics.ContentType, false},
		{"powerchat/1-evil.html", "application/octet-stream", true},
		{"powerchat/1-logo.svg", "application/octet-stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			req := withURLParam(httptest.NewRequest(http.MethodGet, "/blobs/x", nil), "*", tt.key)
			rec := httptest.NewRecorder()
			env.handler.ServeBlob(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			h := rec.Header()
			if got := h.Get("Content-Type"); got != tt.contentType {
				t.Errorf("content type = %q, want %q", got, tt.contentType)
			}
			if got := h.Get("Content-Security-Policy"); got != "sandbox" {
				t.Errorf("csp = %q", got)
			}
			if got := h.Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("nosniff = %q", got)
			}
			disposition := h.Get("Content-Disposition")
			if tt.attachment != strings.HasPrefix(disposition, "attachment") {
				t.Errorf("disposition = %q", disposition)
			}
		})
	}
}
