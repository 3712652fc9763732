package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ServeSSE streams live log entries to w as Server-Sent Events until the
// request context is cancelled or the subscriber cap is reached. The caller
// (server/admin.go) is responsible for auth; ServeSSE returns an error
// when w does not implement http.Flusher.
func (l *Logger) ServeSSE(ctx context.Context, w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	ch, unsubscribe := l.Subscribe()
	if ch == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "event: error\ndata: subscriber limit reached\n\n")
		flusher.Flush()
		return nil
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
