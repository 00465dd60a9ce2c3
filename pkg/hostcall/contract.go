// Package hostcall implements the operation runtime shared by every
// hostcall: the generic create/poll/drop lifecycle that turns a driver's
// asynchronous work into a Future slot the guest polls, independent of
// which specific hostcall or sandbox engine is involved.
package hostcall

import (
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
)

// HostcallContext is the engine-neutral context a driver needs to do its
// work: the calling instance's slot table, and the current guest memory
// base pointer if the engine can supply one this call.
type HostcallContext interface {
	Registry() *registry.InstanceRegistry
	MailboxBase() (uintptr, bool)
}

// Task is the asynchronous unit of work a Contract hands back to the
// operation runtime: a function run on its own goroutine that eventually
// produces a result or a terminal error. It plays the role of the
// reference implementation's `impl Future<Output = GuestResult<O>>`.
type Task[O any] func() (O, *kernelerr.GuestError)

// Contract is implemented by every hostcall driver: given decoded input, it
// builds the Task the operation runtime will run to produce the call's
// output.
type Contract[I, O any] interface {
	ToTask(ctx HostcallContext, input I) Task[O]
}
