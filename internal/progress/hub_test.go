package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *recordSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *recordSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent(jobID string, state State) Event {
	return Event{JobID: jobID, TS: time.Now(), State: state, Payload: Payload{Status: string(state)}}
}

func TestHubDeliversToAllSinks(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	hub := NewHub(Config{FlushWait: 5 * time.Millisecond}, a, b)

	hub.Emit(validEvent("j1", StatePending))
	hub.Emit(validEvent("j1", StateStarted))
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, a.snapshot(), 2)
	require.Len(t, b.snapshot(), 2)
	require.True(t, a.closed)
	require.True(t, b.closed)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	sink := &recordSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{State: StatePending})                 // missing job id
	hub.Emit(Event{JobID: "j1", TS: time.Now(), State: "BOGUS"}) // unknown state
	require.NoError(t, hub.Close(context.Background()))

	require.Empty(t, sink.snapshot())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	sink := &recordSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent("j1", StatePending))
	require.Empty(t, sink.snapshot())
}

func TestHubCloseDrainsBuffer(t *testing.T) {
	sink := &recordSink{}
	hub := NewHub(Config{FlushWait: time.Hour}, sink)

	for i := 0; i < 10; i++ {
		hub.Emit(validEvent("j1", StateProgress))
	}
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.snapshot(), 10)
}
