package ui

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jw6ventures/powerchat/internal/blob"
	"github.com/jw6ventures/powerchat/internal/http/errors"
	"github.com/jw6ventures/powerchat/internal/ics"
	"github.com/jw6ventures/powerchat/internal/meeting"
	"github.com/jw6ventures/powerchat/internal/metrics"
	"github.com/jw6ventures/powerchat/internal/store"
)

const nativeFailedMessage = "Could not open the calendar app. Download the event instead."

// DownloadEvent streams the task's event as an .ics attachment.
func (h *Handler) DownloadEvent(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	doc, params, ok := h.buildDocument(w, r, task, ics.DeliveryDownload)
	if !ok {
		return
	}
	h.writeDocument(w, doc, params)
}

// AddToCalendar delivers the event either natively, by uploading it and
// handing the device a webcal:// link, or as a download. Native delivery is
// only attempted on devices detected as iOS.
func (h *Handler) AddToCalendar(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	mode := ics.ParseDeliveryMode(r.FormValue("mode"))
	touchPoints, _ := strconv.Atoi(r.FormValue("touch_points"))
	if mode == ics.DeliveryNative && !ics.DetectNativeCalendar(r.UserAgent(), touchPoints) {
		mode = ics.DeliveryDownload
	}

	doc, params, ok := h.buildDocument(w, r, task, mode)
	if !ok {
		return
	}
	if mode == ics.DeliveryDownload {
		h.writeDocument(w, doc, params)
		return
	}

	key := blob.ObjectKey(blob.KeyPrefix, ics.FileName(params.MeetingName), h.now())
	uploaded, err := h.blobs.Put(r.Context(), key, ics.ContentType, strings.NewReader(doc))
	if err != nil {
		h.nativeFailed(w, r, task, fmt.Errorf("upload event: %w", err))
		return
	}
	webcal, err := ics.SubscriptionURL(uploaded.URL)
	if err != nil {
		h.nativeFailed(w, r, task, err)
		return
	}
	metrics.IncICSDocument(string(ics.DeliveryNative), "ok")
	http.Redirect(w, r, webcal, http.StatusSeeOther)
}

func (h *Handler) nativeFailed(w http.ResponseWriter, r *http.Request, task *store.Task, err error) {
	errors.LogWarn(r, "native calendar delivery failed", err)
	metrics.IncICSDocument(string(ics.DeliveryNative), "failed")
	h.redirect(w, r, meeting.TaskPath(task.ID), map[string]string{"error": nativeFailedMessage, "download": "1"})
}

// buildDocument renders the task's event, sending the viewer back to the task
// page with a warning when its parameters are incomplete.
func (h *Handler) buildDocument(w http.ResponseWriter, r *http.Request, task *store.Task, mode ics.DeliveryMode) (string, ics.MeetingParameters, bool) {
	params := meetingParams(task)
	doc, err := ics.Build(task.ID, params, h.cfg.MeetingLocation)
	if err != nil {
		errors.LogWarn(r, "build calendar event", err)
		metrics.IncICSDocument(string(mode), "invalid")
		h.redirect(w, r, meeting.TaskPath(task.ID), map[string]string{"error": "Missing event details in task parameters."})
		return "", params, false
	}
	return doc, params, true
}

func (h *Handler) writeDocument(w http.ResponseWriter, doc string, params ics.MeetingParameters) {
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.FileName(params.MeetingName)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	metrics.IncICSDocument(string(ics.DeliveryDownload), "ok")
	_, _ = w.Write([]byte(doc))
}
