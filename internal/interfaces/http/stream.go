package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gastos/internal/shared/middleware"
)

const streamKeepAlive = 25 * time.Second

// HandleStream sends a server-sent "snapshot" event with the full store
// state now and after every change. Holding the stream open keeps the user's
// realtime subscription alive.
func (h *ExpenseHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	s, err := h.registry.For(middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Observers run on the store's goroutines; only signal from there.
	changed := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	log := h.log.WithField("user_id", s.UserID())
	log.Debug("Expense stream opened")
	defer log.Debug("Expense stream closed")

	if err := writeEvent(w, "snapshot", snapshotOf(s)); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if err := writeEvent(w, "snapshot", snapshotOf(s)); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
