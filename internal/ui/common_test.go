package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"no parameter", "", 50},
		{"valid", "limit=10", 10},
		{"invalid", "limit=abc", 50},
		{"zero", "limit=0", 50},
		{"negative", "limit=-3", 50},
		{"over max", "limit=500", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/messages?"+tt.query, nil)
			if got := parseLimit(r, 50); got != tt.want {
				t.Fatalf("parseLimit = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithFlash(t *testing.T) {
	h := &Handler{}
	r := httptest.NewRequest(http.MethodGet, "/ai-tasks/1?status=Saved&error=Upload+failed&download=1", nil)
	data := h.withFlash(r, map[string]any{})

	if data["FlashMessage"] != "Saved" || data["FlashError"] != "Upload failed" || data["OfferDownload"] != true {
		t.Fatalf("unexpected flash data: %+v", data)
	}
	if _, ok := data["CSRFToken"]; ok {
		t.Fatalf("CSRFToken set without a token in context")
	}
}

func TestRedirect(t *testing.T) {
	h := &Handler{}
	rec := httptest.NewRecorder()
	h.redirect(rec, httptest.NewRequest(http.MethodPost, "/", nil), "/ai-tasks/abc", map[string]string{"error": "a b", "status": ""})

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, _ := url.Parse(rec.Header().Get("Location"))
	if loc.Path != "/ai-tasks/abc" || loc.Query().Get("error") != "a b" || loc.Query().Has("status") {
		t.Fatalf("location = %q", loc)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	h := &Handler{templates: templates}
	rec := httptest.NewRecorder()
	h.render(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()), "missing.html", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIsJSON(t *testing.T) {
	for ct, want := range map[string]bool{
		"application/json":                  true,
		"application/json; charset=utf-8":   true,
		"application/x-www-form-urlencoded": false,
		"":                                  false,
	} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Content-Type", ct)
		if got := isJSON(r); got != want {
			t.Errorf("isJSON(%q) = %v, want %v", ct, got, want)
		}
	}
}
