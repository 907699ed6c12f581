package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/docqa-go/internal/apperr"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/pipeline"
)

// sseEvent is one parsed Server-Sent Event.
type sseEvent struct {
	name string
	data string
}

// parseSSE splits an event-stream body into events.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data += strings.TrimPrefix(line, "data: ")
		}
	}
	return events
}

func TestStream_TokensThenResult(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{tokens: []string{"line one\n", "line two"}}
	s := newDocumentTestServer(t, runner, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "/prompt?prompt=q&stream=true", "doc.txt", "text"))

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	events := parseSSE(t, w.Body.String())
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %q", len(events), w.Body.String())
	}

	var first tokenEvent
	if err := json.Unmarshal([]byte(events[0].data), &first); err != nil {
		t.Fatalf("token data: %v", err)
	}
	if events[0].name != eventToken || first.Text != "line one\n" {
		t.Errorf("first event = %+v (%+v)", events[0], first)
	}
	if events[2].name != eventResult {
		t.Fatalf("last event = %q, want result", events[2].name)
	}
	var res pipeline.PromptResult
	if err := json.Unmarshal([]byte(events[2].data), &res); err != nil {
		t.Fatalf("result data: %v", err)
	}
	if res.Answer != "line one\nline two" {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestStream_AcceptHeaderAndStepLabels(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		tokens:  []string{"Short."},
		summary: pipeline.SummaryResult{Summary: "Short.", Tags: "a, b, c", Model: "fake"},
	}
	s := newDocumentTestServer(t, runner, nil)

	req := uploadRequest(t, "/summary", "doc.txt", "text")
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	events := parseSSE(t, w.Body.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %q", len(events), w.Body.String())
	}
	if !strings.Contains(events[0].data, `"step":"summary"`) {
		t.Errorf("token event lacks step: %s", events[0].data)
	}
	if events[1].name != eventResult || !strings.Contains(events[1].data, `"tags":"a, b, c"`) {
		t.Errorf("result event = %+v", events[1])
	}
}

func TestStream_ErrorEvent(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		tokens: []string{"partial"},
		err:    &apperr.Error{Kind: apperr.KindGeneration, Op: "generator: stream", Stage: "generating", Err: errors.New("connection reset")},
	}
	s := newDocumentTestServer(t, runner, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, uploadRequest(t, "/classify?termList=a,b&stream=1", "doc.txt", "text"))

	// SSE errors are delivered in-band after the 200 has been committed.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	events := parseSSE(t, w.Body.String())
	last := events[len(events)-1]
	if last.name != eventError {
		t.Fatalf("last event = %q, want error", last.name)
	}
	var eb errorBody
	if err := json.Unmarshal([]byte(last.data), &eb); err != nil {
		t.Fatalf("error data: %v", err)
	}
	if eb.Error.Code != http.StatusBadGateway || eb.Error.Details["kind"] != string(apperr.KindGeneration) {
		t.Errorf("error event = %+v", eb.Error)
	}
}

func TestSSESink_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	sink := newSSESink(w)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sink.Emit(ctx, generator.Token{Text: "late"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Emit() = %v, want context.Canceled", err)
	}
	if strings.Contains(w.Body.String(), "late") {
		t.Errorf("token written after cancellation: %q", w.Body.String())
	}
}

func TestWantsStream(t *testing.T) {
	t.Parallel()

	cases := []struct {
		target string
		accept string
		want   bool
	}{
		{"/summary", "", false},
		{"/summary?stream=true", "", true},
		{"/summary?stream=1", "", true},
		{"/summary?stream=false", "", false},
		{"/summary", "text/event-stream", true},
		{"/summary", "application/json", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, tc.target, nil)
		if tc.accept != "" {
			req.Header.Set("Accept", tc.accept)
		}
		if got := wantsStream(req); got != tc.want {
			t.Errorf("wantsStream(%s, Accept=%q) = %v, want %v", tc.target, tc.accept, got, tc.want)
		}
	}
}
