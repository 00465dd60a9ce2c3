// Package guest implements the guest-side stub counterpart to
// pkg/hostcall's create/poll/drop hooks: the in-process driving loop a real
// sandbox engine's generated guest bindings run, minus the wasm linear
// memory marshaling pkg/engine is responsible for. It exists so
// integration tests can exercise a full hostcall round trip without a wasm
// runtime, and so pkg/engine's own guest-facing wrappers have a reference
// implementation of the polling protocol to follow.
package guest

import (
	"context"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/mailbox"
	"github.com/stacklok/vkernel/pkg/registry"
)

// instanceContext adapts an InstanceRegistry and the mailbox bound to it
// into the hostcall.HostcallContext interface the operation runtime calls
// through.
type instanceContext struct {
	registry *registry.InstanceRegistry
	mailbox  *mailbox.InProcess
}

func (c *instanceContext) Registry() *registry.InstanceRegistry { return c.registry }

func (c *instanceContext) MailboxBase() (uintptr, bool) {
	return c.mailbox.Base(), true
}

// Instance is an in-process stand-in for a guest module instance: an
// InstanceRegistry bound to an in-process mailbox, plus the monotonic task
// id a real guest executor hands out once per outstanding poll loop.
type Instance struct {
	ctx      *instanceContext
	nextTask uint64
}

// NewInstance builds a guest instance over ir, binding a fresh in-process
// mailbox to it the way a real engine binds its own wake-up primitive
// before handing the instance to guest code.
func NewInstance(ir *registry.InstanceRegistry) *Instance {
	mb := mailbox.NewInProcess()
	ir.BindMailbox(mb)
	return &Instance{ctx: &instanceContext{registry: ir, mailbox: mb}}
}

// Close closes the instance's mailbox, waking any call still parked in
// Call's poll loop.
func (g *Instance) Close() {
	g.ctx.mailbox.Close()
}

// Call drives op to completion the way a guest's generated binding drives a
// single hostcall: create the future, then repeatedly poll and wait for a
// wake-up signal until TakeResult reports readiness, decoding the result
// bytes into O or surfacing the GuestError the driver produced. It blocks
// until op completes, ctx is cancelled, or the instance's mailbox closes.
func Call[I any, O any](ctx context.Context, g *Instance, op *hostcall.Operation[I, O], input I) (O, error) {
	var zero O

	slot, kerr := op.Create(g.ctx, input)
	if kerr != nil {
		return zero, kerr
	}
	defer func() {
		_ = op.Drop(g.ctx, slot)
	}()

	taskID := g.nextTaskID()
	for {
		result, kerr := op.Poll(g.ctx, slot, taskID)
		if kerr != nil {
			return zero, kerr
		}
		if result != nil {
			if result.Err != nil {
				return zero, result.Err
			}
			return abi.DecodeResult[O](result.Value)
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		g.ctx.mailbox.WaitForSignal(ctx)
		if g.ctx.mailbox.IsClosed() {
			return zero, kernelerr.NewSubsystemError("guest mailbox closed while waiting for hostcall result", nil)
		}
	}
}

func (g *Instance) nextTaskID() uint64 {
	g.nextTask++
	return g.nextTask
}
