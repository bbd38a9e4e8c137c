package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agency/internal/request"
	"agency/pkg/logger"
)

const sseHeartbeat = 25 * time.Second

// Subscriber matches request.Store.Subscribe.
type Subscriber func(fn func(request.Event)) (unsubscribe func())

// StreamRequestEvents writes change events as server-sent events until the
// client disconnects. keep filters events; payload shapes what is sent.
func StreamRequestEvents(w http.ResponseWriter, r *http.Request, subscribe Subscriber, keep func(request.Event) bool, payload func(request.Event) any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}

	ch := make(chan request.Event, 16)
	unsubscribe := subscribe(func(e request.Event) {
		if keep != nil && !keep(e) {
			return
		}
		select {
		case ch <- e:
		default:
			logger.Warn(r.Context(), "dropping change event for slow stream", "request_id", e.Request.ID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e := <-ch:
			var v any = e
			if payload != nil {
				v = payload(e)
			}
			b, err := json.Marshal(v)
			if err != nil {
				logger.Error(r.Context(), "encode change event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, b)
			flusher.Flush()
		}
	}
}
