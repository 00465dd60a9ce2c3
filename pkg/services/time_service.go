package services

import (
	"context"
	"sync"
	"time"

	"github.com/stacklok/vkernel/pkg/abi"
)

// TimeCapability is the pluggable policy behind time::now and time::sleep.
type TimeCapability interface {
	Now() (abi.TimeNow, error)
	Sleep(ctx context.Context, durationMs uint64) error
}

// SystemTimeService implements TimeCapability against the host's wall and
// monotonic clocks. MonotonicMs is relative to the service's own creation,
// not the process start, since nothing in this kernel's wire format
// promises cross-instance monotonic comparability.
type SystemTimeService struct {
	once  sync.Once
	start time.Time
}

// NewSystemTimeService constructs a ready-to-use host clock capability.
func NewSystemTimeService() *SystemTimeService {
	return &SystemTimeService{start: time.Now()}
}

// Now returns the current wall-clock and monotonic readings.
func (s *SystemTimeService) Now() (abi.TimeNow, error) {
	s.once.Do(func() {
		if s.start.IsZero() {
			s.start = time.Now()
		}
	})
	now := time.Now()
	return abi.TimeNow{
		UnixMs:      uint64(now.UnixMilli()),
		MonotonicMs: uint64(now.Sub(s.start).Milliseconds()),
	}, nil
}

// Sleep blocks for the requested duration or until ctx is cancelled,
// whichever comes first.
func (s *SystemTimeService) Sleep(ctx context.Context, durationMs uint64) error {
	timer := time.NewTimer(time.Duration(durationMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
