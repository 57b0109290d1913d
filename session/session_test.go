package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStream struct {
	mu     sync.Mutex
	events []string
	closed bool
}

func (s *recordingStream) Send(event string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("closed")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingStream) SendComment(string) error { return nil }

func (s *recordingStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func TestManager_CreateGetRemove(t *testing.T) {
	m := NewManager()

	a, err := m.Create(TransportSSE)
	require.NoError(t, err)
	b, err := m.Create(TransportStreamable)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 32)
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, TransportSSE, got.Transport)

	assert.True(t, m.Remove(a.ID))
	assert.False(t, m.Remove(a.ID))
	assert.False(t, m.Has(a.ID))
	assert.ErrorIs(t, a.Context().Err(), context.Canceled)
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager()
	stale, err := m.Create(TransportSSE)
	require.NoError(t, err)
	fresh, err := m.Create(TransportSSE)
	require.NoError(t, err)

	stale.mu.Lock()
	stale.lastSeen = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	assert.Equal(t, 1, m.Cleanup(10*time.Minute))
	assert.False(t, m.Has(stale.ID))
	assert.True(t, m.Has(fresh.ID))

	select {
	case <-stale.Done():
	default:
		t.Fatal("expected stale session to be closed")
	}
}

func TestManager_CloseAll(t *testing.T) {
	m := NewManager()
	sess, err := m.Create(TransportSSE)
	require.NoError(t, err)
	stream := &recordingStream{}
	sess.BindStream(stream)

	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	assert.True(t, stream.closed)
	assert.Error(t, sess.Send("message", nil))
}

func TestSession_StreamBinding(t *testing.T) {
	sess := NewManager().Ephemeral(TransportSSE)
	defer sess.Close()
	assert.True(t, sess.Ephemeral)
	assert.Error(t, sess.Send("message", nil))

	first := &recordingStream{}
	second := &recordingStream{}
	sess.BindStream(first)
	require.NoError(t, sess.Send("message", 1))
	sess.BindStream(second)
	assert.True(t, first.closed)

	sess.UnbindStream(first)
	require.NoError(t, sess.Send("message", 2))
	assert.Equal(t, []string{"message"}, second.events)

	sess.UnbindStream(second)
	assert.Error(t, sess.Send("message", 3))
}

func TestSession_StateAndContext(t *testing.T) {
	sess, err := NewManager().Create(TransportStreamable)
	require.NoError(t, err)

	sess.SetProtocolVersion("2025-06-18")
	sess.SetClientName("cli")
	sess.MarkInitialized()
	assert.Equal(t, "2025-06-18", sess.ProtocolVersion())
	assert.Equal(t, "cli", sess.ClientName())
	assert.True(t, sess.Initialized())

	ctx := NewContext(context.Background(), sess)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestJanitor(t *testing.T) {
	m := NewManager()
	_, err := NewJanitor(m, "not a schedule", time.Minute)
	require.Error(t, err)

	j, err := NewJanitor(m, "@every 1h", time.Millisecond)
	require.NoError(t, err)

	_, err = m.Create(TransportSSE)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	j.Sweep()
	assert.Equal(t, 0, m.Len())

	j.Start()
	j.Stop()
}
