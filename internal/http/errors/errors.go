package errors

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func logf(r *http.Request, level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		log.Printf("[%s] RequestID=%s: %s", level, requestID, msg)
		return
	}
	log.Printf("[%s] %s", level, msg)
}

func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logf(r, "ERROR", "%s: %v", message, err)
	// Return generic error to client
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	logf(r, "WARN", "bad request: %v", err)
	http.Error(w, clientMessage, http.StatusBadRequest)
}

// JSONError writes {"error": clientMessage}. Server errors are logged as
// errors, everything else as warnings.
func JSONError(w http.ResponseWriter, r *http.Request, status int, err error, clientMessage string) {
	level := "WARN"
	if status >= http.StatusInternalServerError {
		level = "ERROR"
	}
	if err != nil {
		logf(r, level, "%s: %v", clientMessage, err)
	}
	WriteJSON(w, r, status, map[string]string{"error": clientMessage})
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf(r, "WARN", "encode response: %v", err)
	}
}

func LogError(r *http.Request, message string, err error) {
	logf(r, "ERROR", "%s: %v", message, err)
}

func LogWarn(r *http.Request, message string, err error) {
	logf(r, "WARN", "%s: %v", message, err)
}

func LogInfo(r *http.Request, message string) {
	logf(r, "INFO", "%s", message)
}
