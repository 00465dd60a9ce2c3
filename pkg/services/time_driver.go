package services

import (
	"context"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
)

// TimeNowDriver implements time::now.
type TimeNowDriver struct{ Capability TimeCapability }

// NewTimeNowDriver constructs a driver over the given policy.
func NewTimeNowDriver(cap TimeCapability) *TimeNowDriver {
	return &TimeNowDriver{Capability: cap}
}

// ToTask implements hostcall.Contract.
func (d *TimeNowDriver) ToTask(_ hostcall.HostcallContext, _ abi.Empty) hostcall.Task[abi.TimeNow] {
	return func() (abi.TimeNow, *kernelerr.GuestError) {
		now, err := d.Capability.Now()
		if err != nil {
			return abi.TimeNow{}, asGuestError(err)
		}
		return now, nil
	}
}

// TimeSleepDriver implements time::sleep. It is gated by TimeRead, not a
// dedicated sleep capability: a session trusted to read the clock is
// trusted to block on it too.
type TimeSleepDriver struct{ Capability TimeCapability }

// NewTimeSleepDriver constructs a driver over the given policy.
func NewTimeSleepDriver(cap TimeCapability) *TimeSleepDriver {
	return &TimeSleepDriver{Capability: cap}
}

// ToTask implements hostcall.Contract.
func (d *TimeSleepDriver) ToTask(_ hostcall.HostcallContext, input abi.TimeSleep) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		if err := d.Capability.Sleep(context.Background(), input.DurationMs); err != nil {
			return abi.Empty{}, asGuestError(err)
		}
		return abi.Empty{}, nil
	}
}
