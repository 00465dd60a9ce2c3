package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshBaseRoundTrips(t *testing.T) {
	m := NewInProcess()
	m.RefreshBase(0x1000)
	assert.Equal(t, uintptr(0x1000), m.Base())
}

func TestWakerSignalsAndMarksTask(t *testing.T) {
	m := NewInProcess()
	assert.False(t, m.IsSignalled())

	wake := m.Waker(7)
	wake()

	assert.True(t, m.IsSignalled())
	assert.True(t, m.TaskWoken(7))
	assert.False(t, m.TaskWoken(7), "TaskWoken should clear after reading")
}

func TestWaitForSignalUnblocksOnWake(t *testing.T) {
	m := NewInProcess()
	done := make(chan struct{})
	go func() {
		m.WaitForSignal(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	m.Waker(1)()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal did not unblock on wake")
	}
}

func TestWaitForSignalUnblocksOnClose(t *testing.T) {
	m := NewInProcess()
	done := make(chan struct{})
	go func() {
		m.WaitForSignal(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal did not unblock on close")
	}
	assert.True(t, m.IsClosed())
}

func TestWaitForSignalRespectsContext(t *testing.T) {
	m := NewInProcess()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	m.WaitForSignal(ctx)
	require.Less(t, time.Since(start), time.Second)
}
