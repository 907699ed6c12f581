package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/54b3r/docqa-go/internal/generator"
)

// SSE event names.
const (
	eventToken  = "token"
	eventResult = "result"
	eventError  = "error"
)

// tokenEvent is the data payload of a token event.
type tokenEvent struct {
	Text string `json:"text"`
	Step string `json:"step,omitempty"`
}

// sseSink writes generator tokens to the client as Server-Sent Events.
type sseSink struct {
	mu sync.Mutex
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newSSESink sets the event-stream headers and commits the 200 status.
func newSSESink(w http.ResponseWriter) *sseSink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseSink{w: w, rc: http.NewResponseController(w)}
}

// Emit implements generator.Sink. Final markers carry no text and are not
// forwarded; the result event ends the stream instead.
func (s *sseSink) Emit(ctx context.Context, tok generator.Token) error {
	if tok.Final {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.event(eventToken, tokenEvent{Text: tok.Text, Step: tok.Step})
}

// event writes one JSON-encoded event and flushes it.
func (s *sseSink) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: encode %s event: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("server: write %s event: %w", name, err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("server: flush %s event: %w", name, err)
	}
	return nil
}

// wantsStream reports whether the client asked for an event stream.
func wantsStream(r *http.Request) bool {
	if v := r.URL.Query().Get("stream"); v == "true" || v == "1" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
