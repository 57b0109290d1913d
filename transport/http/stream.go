package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

var errStreamClosed = errors.New("event stream is closed")

// eventStream writes server-sent events to one open response. It satisfies
// session.Stream. Writes are serialized so concurrent tool calls on one
// session cannot interleave frames.
type eventStream struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
	onClose func()
	once    sync.Once
}

func newEventStream(w http.ResponseWriter, f http.Flusher, onClose func()) *eventStream {
	return &eventStream{
		writer:  w,
		flusher: f,
		onClose: onClose,
	}
}

// Send writes one event. Strings and byte slices are sent as-is; anything
// else is JSON encoded.
func (s *eventStream) Send(event string, data any) error {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	case []byte:
		payload = string(v)
	default:
		dataJSON, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal SSE data: %w", err)
		}
		payload = string(dataJSON)
	}

	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(normalizeNewlines(payload), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if err := s.writeLocked(b.String()); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	return nil
}

// SendComment writes one SSE comment frame (":" prefixed lines).
func (s *eventStream) SendComment(comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}

	comment = strings.ReplaceAll(normalizeNewlines(comment), "\n", "\n: ")
	if err := s.writeLocked(fmt.Sprintf(": %s\n\n", comment)); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	return nil
}

func (s *eventStream) writeLocked(payload string) error {
	if _, err := s.writer.Write([]byte(payload)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close marks the stream closed and runs the close hook once. The handler
// owning the response returns when the hook fires.
func (s *eventStream) Close() error {
	s.mu.Lock()
	wasOpen := !s.closed
	s.closed = true
	s.mu.Unlock()

	if wasOpen && s.onClose != nil {
		s.once.Do(s.onClose)
	}
	return nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// openEventStream writes the SSE response headers.
func openEventStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return flusher, true
}
