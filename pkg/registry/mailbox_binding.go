package registry

import "github.com/stacklok/vkernel/pkg/mailbox"

// BindMailbox attaches the WakeMailbox an instance's guest task wake-ups
// are delivered through. Binding is optional: instances driven entirely by
// pkg/guest's in-process stub still work without one, since nothing ever
// calls Waker on them.
func (ir *InstanceRegistry) BindMailbox(mb mailbox.WakeMailbox) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	ir.mailbox = mb
}

// RefreshMailbox forwards a guest memory base pointer update to the bound
// mailbox, if any.
func (ir *InstanceRegistry) RefreshMailbox(base uintptr) {
	ir.mu.Lock()
	mb := ir.mailbox
	ir.mu.Unlock()
	if mb != nil {
		mb.RefreshBase(base)
	}
}

// Waker returns the wake-up callback for taskID, or false if no mailbox is
// bound.
func (ir *InstanceRegistry) Waker(taskID uint64) (func(), bool) {
	ir.mu.Lock()
	mb := ir.mailbox
	ir.mu.Unlock()
	if mb == nil {
		return nil, false
	}
	return mb.Waker(taskID), true
}

// InsertFuture registers a fresh FutureSharedState in the process-wide
// registry and allocates a slot for it in this instance, returning the
// slot id the guest will use to poll/drop it.
func (ir *InstanceRegistry) InsertFuture(f *FutureSharedState) SlotId {
	id := ir.registry.Insert(ResourceFuture, f)
	return ir.Allocate(ResourceFuture, id)
}

// FutureState resolves a SlotId to its FutureSharedState.
func (ir *InstanceRegistry) FutureState(slot SlotId) (*FutureSharedState, bool) {
	res, kind, regErr := ir.Lookup(slot)
	if regErr != nil || kind != ResourceFuture {
		return nil, false
	}
	h, regErr := Lookup[*FutureSharedState](ir.registry, res)
	if regErr != nil {
		return nil, false
	}
	return h.Value, true
}

// RemoveFuture frees slot and removes its backing entry from the
// process-wide registry, returning the FutureSharedState it pointed at.
func (ir *InstanceRegistry) RemoveFuture(slot SlotId) (*FutureSharedState, bool) {
	f, ok := ir.FutureState(slot)
	if !ok {
		return nil, false
	}
	res, regErr := ir.Free(slot)
	if regErr != nil {
		return nil, false
	}
	_ = ir.registry.Remove(res)
	return f, true
}
