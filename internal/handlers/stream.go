package handlers

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// Stream sends the current state of a collection as a server-sent event,
// then one event per change until the client goes away.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	switch collection := chi.URLParam(r, "collection"); collection {
	case "boards":
		stream(w, r, h.stores.Boards.Subscribe)
	case "tasks":
		stream(w, r, h.stores.Tasks.Subscribe)
	case "settings":
		stream(w, r, h.stores.Settings.Subscribe)
	default:
		respondError(w, http.StatusNotFound, "unknown collection")
	}
}

func stream[T any](w http.ResponseWriter, r *http.Request, subscribe func(func(T)) func()) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "stream unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Each frame is a full snapshot, so a slow client only needs the newest.
	frames := make(chan []byte, 1)
	unsubscribe := subscribe(func(v T) {
		data, err := sonic.ConfigStd.Marshal(v)
		if err != nil {
			log.WithError(err).Warn("encode stream frame")
			return
		}
		select {
		case <-frames:
		default:
		}
		select {
		case frames <- data:
		default:
		}
	})
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-frames:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				log.WithError(err).Debug("stream client gone")
				return
			}
			flusher.Flush()
		}
	}
}
