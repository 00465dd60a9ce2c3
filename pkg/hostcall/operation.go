package hostcall

import (
	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/logger"
	"github.com/stacklok/vkernel/pkg/registry"
)

// Operation pairs a driver with the wasm import namespace it is linked
// under, and implements the three ABI hooks (create/poll/drop) in terms of
// the driver's Contract.
type Operation[I, O any] struct {
	driver Contract[I, O]
	module string
}

// NewOperation constructs an operation under the given import module name.
func NewOperation[I, O any](driver Contract[I, O], module string) *Operation[I, O] {
	return &Operation[I, O]{driver: driver, module: module}
}

// FromHostcall constructs an operation named after a catalogue entry.
func FromHostcall[I, O any](driver Contract[I, O], call abi.Hostcall[I, O]) *Operation[I, O] {
	return NewOperation(driver, call.Name())
}

// Module returns the import module namespace this operation is linked
// under.
func (op *Operation[I, O]) Module() string {
	return op.module
}

// Create runs the `create` ABI hook: decode already happened by the time
// input reaches here, so this builds the driver's task, spawns it, and
// registers a Future slot the caller returns to the guest as a handle.
func (op *Operation[I, O]) Create(ctx HostcallContext, input I) (registry.SlotId, *kernelerr.KernelError) {
	task := op.driver.ToTask(ctx, input)

	state := registry.NewFutureSharedState()
	go func() {
		out, guestErr := task()
		if guestErr != nil {
			state.Complete(registry.FutureResult{Err: guestErr})
			return
		}
		encoded, err := abi.Encode(out)
		if err != nil {
			state.Complete(registry.FutureResult{
				Err: kernelerr.NewSubsystemError("failed to encode hostcall output", err),
			})
			return
		}
		state.Complete(registry.FutureResult{Value: encoded})
	}()

	slot := ctx.Registry().InsertFuture(state)
	return slot, nil
}

// Poll runs the `poll` ABI hook. It refreshes the mailbox's guest memory
// base if the engine can supply one this call, registers this call's waker
// against the future, and drains whatever TakeResult reports.
func (op *Operation[I, O]) Poll(ctx HostcallContext, slot registry.SlotId, taskID uint64) (*registry.FutureResult, *kernelerr.KernelError) {
	if base, ok := ctx.MailboxBase(); ok {
		ctx.Registry().RefreshMailbox(base)
	}

	state, ok := ctx.Registry().FutureState(slot)
	if !ok {
		return nil, kernelerr.NewKernelRegistryError(kernelerr.ErrRegistryNotFound())
	}

	if waker, ok := ctx.Registry().Waker(taskID); ok {
		state.RegisterWaker(waker)
	}

	result, ready := state.TakeResult()
	if !ready {
		return nil, nil
	}

	if _, ok := ctx.Registry().RemoveFuture(slot); !ok {
		logger.Warnw("poll: future slot vanished before removal", "module", op.module)
	}
	return result, nil
}

// Drop runs the `drop` ABI hook: it removes the slot and abandons the
// future, so a driver goroutine still in flight completes into a void.
func (op *Operation[I, O]) Drop(ctx HostcallContext, slot registry.SlotId) *kernelerr.KernelError {
	state, ok := ctx.Registry().RemoveFuture(slot)
	if !ok {
		return kernelerr.NewKernelRegistryError(kernelerr.ErrRegistryNotFound())
	}
	state.Abandon()
	return nil
}
