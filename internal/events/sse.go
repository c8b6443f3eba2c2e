package events

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ServeSSE streams hub events to the client as server sent events until the
// request is cancelled.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	log.Debug().Msgf("Event stream opened for %s, %d listener(s)", r.RemoteAddr, h.Count())

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}

			data, err := MarshalEvent(event)
			if err != nil {
				log.Err(err).Msgf("Failed to encode %s event", event.Type)
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
