package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tasktrack/internal/logs"
	"tasktrack/internal/models"
)

// Handler отдаёт события пользователя как text/event-stream.
// userID достаётся из контекста запроса функцией identify.
func Handler(h *Hub, identify func(*http.Request) string, heartbeat time.Duration) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := identify(r)
		if userID == "" {
			models.WriteError(w, models.ErrUnauthorized)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "streaming unsupported", nil)
			return
		}

		events, cancel := h.Subscribe(userID)
		defer cancel()

		hdr := w.Header()
		hdr.Set("Content-Type", "text/event-stream")
		hdr.Set("Cache-Control", "no-cache")
		hdr.Set("Connection", "keep-alive")
		hdr.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		tick := time.NewTicker(heartbeat)
		defer tick.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-tick.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				b, err := json.Marshal(ev)
				if err != nil {
					logs.Logger.WithField("user_id", userID).Errorf("sse marshal: %v", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName(ev), b); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// Имена SSE-событий.
const (
	EventChange  = "change"
	EventDueSoon = "due_soon"
)

func eventName(ev Event) string {
	if ev.Action == ActionDueSoon {
		return EventDueSoon
	}
	return EventChange
}
