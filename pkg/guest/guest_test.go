package guest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/registry"
	"github.com/stacklok/vkernel/pkg/services"
	"github.com/stacklok/vkernel/pkg/session"
)

func TestCallDrivesOperationToCompletionAndDecodesResult(t *testing.T) {
	op := hostcall.FromHostcall[abi.Empty, abi.TimeNow](
		services.NewTimeNowDriver(services.NewSystemTimeService()), abi.TimeNowCall)

	inst := NewInstance(registry.NewInstanceRegistry(registry.NewRegistry()))
	defer inst.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := Call(ctx, inst, op, abi.Empty{})
	require.NoError(t, err)
	assert.NotZero(t, out.UnixMs)
}

func TestCallSurfacesDriverGuestError(t *testing.T) {
	op := hostcall.FromHostcall[abi.GuestResourceId, abi.Empty](
		services.NewProcessStopDriver(stubProcess{failStop: true}), abi.ProcessStopCall)

	inst := NewInstance(registry.NewInstanceRegistry(registry.NewRegistry()))
	defer inst.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := inst.ctx.registry.Registry().Insert(registry.ResourceProcess, "a-process")
	_, err := Call(ctx, inst, op, abi.GuestResourceId(res))
	require.Error(t, err)
}

func TestCallHonoursContextCancellation(t *testing.T) {
	op := hostcall.FromHostcall[abi.TimeSleep, abi.Empty](
		services.NewTimeSleepDriver(services.NewSystemTimeService()), abi.TimeSleepCall)

	inst := NewInstance(registry.NewInstanceRegistry(registry.NewRegistry()))
	defer inst.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, inst, op, abi.TimeSleep{DurationMs: 200})
	require.Error(t, err)
}

type stubProcess struct {
	failStop bool
}

func (stubProcess) Start(_, _ string, _ []session.Capability, _ abi.EntrypointInvocation) (any, error) {
	return nil, nil
}

func (s stubProcess) Stop(any) error {
	if s.failStop {
		return assert.AnError
	}
	return nil
}
