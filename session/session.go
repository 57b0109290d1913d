// Package session tracks the per-connection state owned by the transport
// adapters. A Session is created by an adapter and handed explicitly to the
// tool invoker; nothing looks up a "current" session implicitly.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Transport names the adapter that owns a session.
type Transport string

const (
	TransportSSE        Transport = "sse"
	TransportStreamable Transport = "streamable_http"
)

// Stream is a server-to-client event channel bound to a session.
type Stream interface {
	Send(event string, data any) error
	SendComment(comment string) error
	Close() error
}

// Session is the state of one client connection.
type Session struct {
	ID        string
	Transport Transport
	CreatedAt time.Time
	Ephemeral bool

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	lastSeen        time.Time
	protocolVersion string
	initialized     bool
	clientName      string
	stream          Stream
}

func newSession(id string, transport Transport, ephemeral bool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Session{
		ID:        id,
		Transport: transport,
		CreatedAt: now,
		Ephemeral: ephemeral,
		ctx:       ctx,
		cancel:    cancel,
		lastSeen:  now,
	}
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetProtocolVersion stores the version negotiated during initialize.
func (s *Session) SetProtocolVersion(version string) {
	s.mu.Lock()
	s.protocolVersion = version
	s.mu.Unlock()
}

// ProtocolVersion returns the negotiated version, or "" before initialize.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// SetClientName records the clientInfo name sent during initialize.
func (s *Session) SetClientName(name string) {
	s.mu.Lock()
	s.clientName = name
	s.mu.Unlock()
}

// ClientName returns the clientInfo name sent during initialize.
func (s *Session) ClientName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientName
}

// MarkInitialized records the notifications/initialized handshake.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether the client completed the handshake.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// BindStream attaches a stream, closing any stream it replaces.
func (s *Session) BindStream(stream Stream) {
	s.mu.Lock()
	previous := s.stream
	s.stream = stream
	s.mu.Unlock()
	if previous != nil && previous != stream {
		_ = previous.Close()
	}
}

// UnbindStream detaches stream if it is still the bound one.
func (s *Session) UnbindStream(stream Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == stream {
		s.stream = nil
	}
}

// Send pushes an event on the bound stream.
func (s *Session) Send(event string, data any) error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("session %s has no open stream", s.ID)
	}
	return stream.Send(event, data)
}

// Close cancels the session context and closes its stream.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		_ = stream.Close()
	}
}

type contextKey struct{}

// NewContext returns ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read cryptographic random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
