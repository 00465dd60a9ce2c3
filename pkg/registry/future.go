package registry

import (
	"sync"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// FutureState is the lifecycle of a Future's shared state. It transitions
// monotonically: Pending -> Ready once, and from either Pending or Ready to
// Abandoned when the owning instance tears the slot down.
type FutureState uint8

// Future lifecycle states.
const (
	FuturePending FutureState = iota
	FutureReady
	FutureAbandoned
)

// Waker is called by the engine to wake whatever guest task is parked on a
// pending Future, once a driver transitions it to Ready.
type Waker func()

// FutureResult is the outcome a driver records when it completes: either a
// success payload or an error. A WouldBlock error may be recorded too;
// TakeResult treats it as not yet ready, clearing it and leaving the future
// pending.
type FutureResult struct {
	Value []byte
	Err   *kernelerr.GuestError
}

// FutureSharedState is the state a Future's SlotId resolves to in the
// process-wide registry. It is shared between the driver goroutine that
// eventually produces a result and the poll hook that a guest's repeated
// `poll` hostcalls drain it through.
type FutureSharedState struct {
	mu     sync.Mutex
	state  FutureState
	result *FutureResult
	waker  Waker
}

// NewFutureSharedState constructs a Future in the Pending state.
func NewFutureSharedState() *FutureSharedState {
	return &FutureSharedState{state: FuturePending}
}

// RegisterWaker installs the waker to invoke when this future becomes
// Ready. At most one waker is ever registered; a later call replaces an
// earlier one rather than stacking, matching a guest task re-polling and
// re-registering on every `poll` hostcall.
func (f *FutureSharedState) RegisterWaker(w Waker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waker = w
}

// Complete transitions a Pending future to Ready with the given result and
// fires the registered waker, if any. Calling Complete on a non-Pending
// future is a no-op; a future is completed at most once.
func (f *FutureSharedState) Complete(result FutureResult) {
	f.mu.Lock()
	if f.state != FuturePending {
		f.mu.Unlock()
		return
	}
	f.state = FutureReady
	f.result = &result
	w := f.waker
	f.waker = nil
	f.mu.Unlock()

	if w != nil {
		w()
	}
}

// TakeResult implements the ABI's take_result semantics for `poll`:
//   - Pending: returns (nil, false) — the caller should leave the slot
//     alone and report "still pending" to the guest.
//   - Ready with a success value: returns the value and true, consuming the
//     result; the caller should free the slot afterward.
//   - Ready with a WouldBlock-flavored error: returns (nil, false) without
//     consuming — the driver is expected to re-arm and retry, so the slot
//     stays pending from the guest's point of view.
//   - Ready with any other error: returns the error and true, consuming the
//     result; the caller should free the slot afterward.
func (f *FutureSharedState) TakeResult() (*FutureResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FutureAbandoned {
		return &FutureResult{Err: kernelerr.NewSubsystemError("future was abandoned", nil)}, true
	}
	if f.state != FutureReady || f.result == nil {
		return nil, false
	}
	if f.result.Err != nil && kernelerr.IsWouldBlock(f.result.Err) {
		f.state = FuturePending
		f.result = nil
		return nil, false
	}

	res := f.result
	f.result = nil
	return res, true
}

// Abandon transitions a Pending or Ready future to Abandoned. It is a
// terminal state: any later TakeResult reports an abandoned error, and
// Complete becomes a no-op.
func (f *FutureSharedState) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FutureAbandoned {
		return
	}
	f.state = FutureAbandoned
	f.result = nil
	f.waker = nil
}

// State reports the future's current lifecycle state.
func (f *FutureSharedState) State() FutureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
