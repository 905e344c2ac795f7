package ui

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/powerchat/internal/blob"
	"github.com/jw6ventures/powerchat/internal/chat"
	"github.com/jw6ventures/powerchat/internal/http/errors"
	"github.com/jw6ventures/powerchat/internal/ics"
	"github.com/jw6ventures/powerchat/internal/realtime"
	"github.com/jw6ventures/powerchat/internal/store"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type chatMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// ListMessages returns the chat history, oldest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chat.List(r.Context(), parseLimit(r, h.cfg.ChatHistoryLimit))
	if err != nil {
		errors.JSONError(w, r, http.StatusInternalServerError, err, "Failed to load messages")
		return
	}
	errors.WriteJSON(w, r, http.StatusOK, map[string]any{"messages": messages})
}

// SendMessage accepts {"content": "..."} or a form with a content field.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in chatMessage
	if isJSON(r) {
		if err := decodeJSON(w, r, &in); err != nil {
			errors.JSONError(w, r, http.StatusBadRequest, err, "Invalid message")
			return
		}
	} else {
		in.Content = r.FormValue("content")
	}

	msg, err := h.chat.Send(r.Context(), currentUser(r).ID, in.Content)
	if err != nil {
		h.chatError(w, r, err)
		return
	}
	errors.WriteJSON(w, r, http.StatusCreated, msg)
}

// StreamMessages pushes new messages as server-sent events while the client
// stays connected.
func (h *Handler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	realtime.ServeSSE(w, r, h.chat.Subscribe(r.Context()))
}

// UploadImage stores the multipart "file" under a fresh
// powerchat/<unix-ms>-<filename> key. Only sniffed image content is accepted.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	name := blob.SanitizeName(r.URL.Query().Get("filename"))
	if name == "" {
		errors.JSONError(w, r, http.StatusBadRequest, nil, "Filename is required")
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "File is required")
		return
	}
	defer file.Close()

	stored, ok := h.putImage(w, r, name, file)
	if !ok {
		return
	}
	errors.WriteJSON(w, r, http.StatusOK, stored)
}

// PostChat handles the composer form: a "messages" JSON list of which the
// last entry is the new message, plus an optional image attachment.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	values := r.MultipartForm.Value["messages"]
	if len(values) == 0 {
		errors.JSONError(w, r, http.StatusBadRequest, nil, "Messages are required")
		return
	}
	var last chatMessage
	if err := json.Unmarshal([]byte(values[len(values)-1]), &last); err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "Invalid message")
		return
	}

	user := currentUser(r)
	var attachment *blob.Blob
	if files := r.MultipartForm.File["attachments"]; len(files) > 0 {
		stored, ok := h.storeAttachment(w, r, files[0])
		if !ok {
			return
		}
		attachment = &stored
	}

	var (
		saved *store.Message
		err   error
	)
	if attachment != nil {
		saved, err = h.chat.SendImage(r.Context(), user.ID, attachment.URL, last.Content)
	} else {
		saved, err = h.chat.Send(r.Context(), user.ID, last.Content)
	}
	if err != nil {
		h.chatError(w, r, err)
		return
	}
	errors.WriteJSON(w, r, http.StatusCreated, map[string]any{"success": true, "message": saved})
}

// UploadCalendar stores an .ics attachment after checking that it decodes
// to at least one event, and returns its public URL.
func (h *Handler) UploadCalendar(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["attachments"]
	if len(files) == 0 {
		errors.JSONError(w, r, http.StatusBadRequest, nil, "File is required")
		return
	}
	f, err := files[0].Open()
	if err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "File is required")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "File is required")
		return
	}
	if _, err := ics.Parse(bytes.NewReader(data)); err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "Invalid calendar file")
		return
	}

	name := blob.SanitizeName(files[0].Filename)
	if name == "" {
		name = "event"
	}
	key := blob.ObjectKey(blob.KeyPrefix, blob.ReplaceExt(name, ".ics"), h.now())
	stored, ok := h.putBlob(w, r, key, ics.ContentType, bytes.NewReader(data))
	if !ok {
		return
	}
	errors.WriteJSON(w, r, http.StatusOK, map[string]any{"success": true, "url": stored.URL})
}

// ServeBlob serves stored objects publicly. Only images and calendars render
// inline, anything else is a sandboxed download.
func (h *Handler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	obj, err := h.blobs.Open(r.Context(), key)
	if stderrors.Is(err, blob.ErrNotFound) || stderrors.Is(err, blob.ErrInvalidKey) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		errors.InternalError(w, r, err, "failed to open blob")
		return
	}
	defer obj.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox")
	if blob.Inline(obj.ContentType) {
		w.Header().Set("Content-Type", obj.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(obj.Pathname)))
	}
	http.ServeContent(w, r, path.Base(obj.Pathname), obj.ModTime, obj)
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Storage.MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.JSONError(w, r, http.StatusRequestEntityTooLarge, err, "File is too large")
			return false
		}
		errors.JSONError(w, r, http.StatusBadRequest, err, "File is required")
		return false
	}
	return true
}

func (h *Handler) storeAttachment(w http.ResponseWriter, r *http.Request, header *multipart.FileHeader) (blob.Blob, bool) {
	f, err := header.Open()
	if err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "File is required")
		return blob.Blob{}, false
	}
	defer f.Close()
	name := blob.SanitizeName(header.Filename)
	if name == "" {
		name = "upload"
	}
	return h.putImage(w, r, name, f)
}

// putImage stores body as an image named after its sniffed type. The
// client's declared content type is ignored.
func (h *Handler) putImage(w http.ResponseWriter, r *http.Request, name string, body io.Reader) (blob.Blob, bool) {
	contentType, body, err := blob.SniffImage(body)
	if stderrors.Is(err, blob.ErrUnsupportedType) {
		errors.JSONError(w, r, http.StatusUnsupportedMediaType, err, "File must be a PNG, JPEG, GIF or WebP image")
		return blob.Blob{}, false
	}
	if err != nil {
		errors.JSONError(w, r, http.StatusBadRequest, err, "File is required")
		return blob.Blob{}, false
	}
	key := blob.ObjectKey(blob.KeyPrefix, blob.ImageName(name, contentType), h.now())
	return h.putBlob(w, r, key, contentType, body)
}

func (h *Handler) putBlob(w http.ResponseWriter, r *http.Request, key, contentType string, body io.Reader) (blob.Blob, bool) {
	stored, err := h.blobs.Put(r.Context(), key, contentType, body)
	switch {
	case err == nil:
		return stored, true
	case stderrors.Is(err, blob.ErrTooLarge):
		errors.JSONError(w, r, http.StatusRequestEntityTooLarge, err, "File is too large")
	case stderrors.Is(err, blob.ErrExists):
		errors.JSONError(w, r, http.StatusConflict, err, "File already exists")
	case stderrors.Is(err, blob.ErrInvalidKey):
		errors.JSONError(w, r, http.StatusBadRequest, err, "Filename is required")
	default:
		errors.JSONError(w, r, http.StatusInternalServerError, err, "Error uploading file")
	}
	return blob.Blob{}, false
}

func (h *Handler) chatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stderrors.Is(err, chat.ErrEmptyMessage):
		errors.JSONError(w, r, http.StatusBadRequest, nil, "Message cannot be empty")
	case stderrors.Is(err, chat.ErrMessageTooLong):
		errors.JSONError(w, r, http.StatusBadRequest, nil, "Message is too long")
	default:
		errors.JSONError(w, r, http.StatusInternalServerError, err, "Failed to save message")
	}
}
