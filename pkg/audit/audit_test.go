package audit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func TestEmitDispatchesToActiveSinkAndStampsTime(t *testing.T) {
	sink := &recordingSink{}
	SetSink(sink)
	t.Cleanup(func() { SetSink(nil) })

	Emit(Event{Type: EventSessionCreate, Outcome: OutcomeSuccess, Actor: 1, Target: 2})

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventSessionCreate, sink.events[0].Type)
	assert.False(t, sink.events[0].At.IsZero())
}

func TestSetSinkNilRestoresLogSink(t *testing.T) {
	SetSink(&recordingSink{})
	SetSink(nil)
	_, ok := (*active.Load()).(LogSink)
	assert.True(t, ok)
}
