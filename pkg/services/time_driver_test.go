package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/abi"
)

type recordingTimeCapability struct {
	mu    sync.Mutex
	slept []uint64
}

func (c *recordingTimeCapability) Now() (abi.TimeNow, error) {
	return abi.TimeNow{UnixMs: 11, MonotonicMs: 22}, nil
}

func (c *recordingTimeCapability) Sleep(_ context.Context, durationMs uint64) error {
	c.mu.Lock()
	c.slept = append(c.slept, durationMs)
	c.mu.Unlock()
	return nil
}

func TestTimeNowDriverReturnsCapabilitySnapshot(t *testing.T) {
	ctx := newFakeContext()
	driver := NewTimeNowDriver(&recordingTimeCapability{})
	now, gerr := driver.ToTask(ctx, abi.Empty{})()
	require.Nil(t, gerr)
	assert.Equal(t, uint64(11), now.UnixMs)
	assert.Equal(t, uint64(22), now.MonotonicMs)
}

func TestTimeSleepDriverDelegatesToCapability(t *testing.T) {
	ctx := newFakeContext()
	cap := &recordingTimeCapability{}
	driver := NewTimeSleepDriver(cap)
	_, gerr := driver.ToTask(ctx, abi.TimeSleep{DurationMs: 15})()
	require.Nil(t, gerr)
	assert.Equal(t, []uint64{15}, cap.slept)
}

func TestSystemTimeServiceSleepWaitsRequestedDuration(t *testing.T) {
	svc := NewSystemTimeService()
	start := time.Now()
	require.NoError(t, svc.Sleep(context.Background(), 5))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSystemTimeServiceNowIsMonotonicNonDecreasing(t *testing.T) {
	svc := NewSystemTimeService()
	first, err := svc.Now()
	require.NoError(t, err)
	second, err := svc.Now()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.MonotonicMs, first.MonotonicMs)
}
