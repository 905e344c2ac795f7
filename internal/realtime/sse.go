package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// HeartbeatInterval keeps idle streams alive through proxies.
var HeartbeatInterval = 25 * time.Second

// ServeSSE streams sub as server-sent "message" events until the client goes
// away or the subscription is closed. It always closes sub before returning.
func ServeSSE(w http.ResponseWriter, r *http.Request, sub *Subscription) {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("[ERROR] realtime: encode message %d: %v", msg.ID, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", msg.ID, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
