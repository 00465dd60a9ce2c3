package registry

import (
	"sync"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/mailbox"
)

// slot is one row of an instance's local slot table.
type slot struct {
	kind ResourceType
	res  ResourceId
}

// InstanceRegistry is the per-guest-instance slot table. Hostcall `create`
// hooks allocate a SlotId here and pair it with the ResourceId the
// corresponding driver registered in the process-wide Registry; `poll` and
// `drop` hooks look slots back up by SlotId, since that's the only handle
// the guest holds.
//
// Every InstanceRegistry shares the process-wide Registry its kernel was
// built with; it owns only the local slot -> resource mapping.
type InstanceRegistry struct {
	registry *Registry

	mu      sync.Mutex
	next    uint32
	free    []SlotId
	slots   map[SlotId]slot
	mailbox mailbox.WakeMailbox
}

// NewInstanceRegistry constructs an empty slot table backed by registry.
func NewInstanceRegistry(registry *Registry) *InstanceRegistry {
	return &InstanceRegistry{
		registry: registry,
		slots:    make(map[SlotId]slot),
	}
}

// Registry returns the process-wide registry this instance's slots resolve
// into.
func (ir *InstanceRegistry) Registry() *Registry {
	return ir.registry
}

// Allocate claims a SlotId for a resource already inserted into the
// process-wide registry, reusing a freed slot id when one is available.
func (ir *InstanceRegistry) Allocate(kind ResourceType, res ResourceId) SlotId {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	var id SlotId
	if n := len(ir.free); n > 0 {
		id = ir.free[n-1]
		ir.free = ir.free[:n-1]
	} else {
		id = SlotId(ir.next)
		ir.next++
	}
	ir.slots[id] = slot{kind: kind, res: res}
	return id
}

// Lookup resolves a SlotId to the ResourceId it currently points at.
func (ir *InstanceRegistry) Lookup(id SlotId) (ResourceId, ResourceType, *kernelerr.RegistryError) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	s, ok := ir.slots[id]
	if !ok {
		return 0, 0, kernelerr.ErrRegistryNotFound()
	}
	return s.res, s.kind, nil
}

// Free releases a SlotId, making it eligible for reuse, and returns the
// ResourceId it pointed at so the caller can decide whether to remove the
// backing entry from the process-wide registry too.
func (ir *InstanceRegistry) Free(id SlotId) (ResourceId, *kernelerr.RegistryError) {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	s, ok := ir.slots[id]
	if !ok {
		return 0, kernelerr.ErrRegistryNotFound()
	}
	delete(ir.slots, id)
	ir.free = append(ir.free, id)
	return s.res, nil
}

// Teardown releases every slot owned by this instance. Each Future-kind
// slot's ResourceId is handed to abandon (and is not removed from the
// process-wide registry) before any other slot kind is processed; every
// other slot's resource is removed from the process-wide registry.
func (ir *InstanceRegistry) Teardown(abandon func(ResourceId)) {
	ir.mu.Lock()
	futures := make([]ResourceId, 0, len(ir.slots))
	others := make([]ResourceId, 0, len(ir.slots))
	for _, s := range ir.slots {
		if s.kind == ResourceFuture {
			futures = append(futures, s.res)
		} else {
			others = append(others, s.res)
		}
	}
	ir.slots = make(map[SlotId]slot)
	ir.free = nil
	ir.mu.Unlock()

	for _, res := range futures {
		if abandon != nil {
			abandon(res)
		}
	}
	for _, res := range others {
		_ = ir.registry.Remove(res)
	}
}
