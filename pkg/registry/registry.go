package registry

import (
	"sync"
	"sync/atomic"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// entry is one row of the process-wide resource table.
type entry struct {
	kind  ResourceType
	value any
}

// Registry is the process-wide resource table. Every ResourceId minted by
// the kernel, regardless of which instance owns it, lives here until its
// owning instance is torn down or the resource is explicitly removed.
//
// Registry is safe for concurrent use; hostcall drivers run on whatever
// goroutine the sandbox engine dispatches a call on.
type Registry struct {
	mu      sync.RWMutex
	next    atomic.Uint64
	entries map[ResourceId]entry
	shared  map[SharedId]ResourceId

	singletons *SingletonMap
}

// NewRegistry constructs an empty resource registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:    make(map[ResourceId]entry),
		shared:     make(map[SharedId]ResourceId),
		singletons: NewSingletonMap(),
	}
}

// RegisterSingleton records resource under dep if dep has no registrant
// yet. It reports the winning ResourceId (resource itself if this call won
// the race) and whether resource was the one installed.
func (r *Registry) RegisterSingleton(dep DependencyId, resource ResourceId) (ResourceId, bool) {
	return r.singletons.Register(dep, func() ResourceId { return resource })
}

// Singleton resolves dep to its registered ResourceId, if any.
func (r *Registry) Singleton(dep DependencyId) (ResourceId, bool) {
	return r.singletons.Lookup(dep)
}

// RemoveSingleton deletes dep's registration.
func (r *Registry) RemoveSingleton(dep DependencyId) *kernelerr.RegistryError {
	return r.singletons.Remove(dep)
}

// Insert allocates a fresh ResourceId for value and records its kind.
func (r *Registry) Insert(kind ResourceType, value any) ResourceId {
	id := ResourceId(r.next.Add(1))
	r.mu.Lock()
	r.entries[id] = entry{kind: kind, value: value}
	r.mu.Unlock()
	return id
}

// Remove deletes id from the registry, returning the RegistryError if it was
// never present.
func (r *Registry) Remove(id ResourceId) *kernelerr.RegistryError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return kernelerr.ErrRegistryNotFound()
	}
	delete(r.entries, id)
	return nil
}

// Kind reports the ResourceType stored under id.
func (r *Registry) Kind(id ResourceId) (ResourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// ResourceHandle is a typed view onto an entry in the registry, produced by
// Lookup. It is only valid so long as the underlying entry is not removed;
// callers must not retain one across a hostcall boundary.
type ResourceHandle[T any] struct {
	ID    ResourceId
	Value T
}

// Lookup downcasts the entry stored under id to T, returning an
// ErrWrongKind RegistryError if the stored value is not assignable to T and
// ErrRegNotFound if id is unknown.
func Lookup[T any](r *Registry, id ResourceId) (ResourceHandle[T], *kernelerr.RegistryError) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return ResourceHandle[T]{}, kernelerr.ErrRegistryNotFound()
	}
	v, ok := e.value.(T)
	if !ok {
		return ResourceHandle[T]{}, kernelerr.ErrRegistryWrongKind()
	}
	return ResourceHandle[T]{ID: id, Value: v}, nil
}

// Share mints a SharedId alias pointing at id, for handing a resource (most
// commonly a shared memory region) to another instance without exposing its
// raw ResourceId.
func (r *Registry) Share(id ResourceId) SharedId {
	sid := SharedId(r.next.Add(1))
	r.mu.Lock()
	r.shared[sid] = id
	r.mu.Unlock()
	return sid
}

// Resolve follows a SharedId back to the ResourceId it aliases.
func (r *Registry) Resolve(sid SharedId) (ResourceId, *kernelerr.RegistryError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.shared[sid]
	if !ok {
		return 0, kernelerr.ErrRegistryNotFound()
	}
	return id, nil
}

// Unshare removes a SharedId alias. It does not touch the underlying
// ResourceId's entry.
func (r *Registry) Unshare(sid SharedId) {
	r.mu.Lock()
	delete(r.shared, sid)
	r.mu.Unlock()
}
