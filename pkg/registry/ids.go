// Package registry implements the kernel's resource handle space: the
// process-wide resource table, per-instance slot tables, and the singleton
// dependency map that hostcall drivers use to track long-lived state.
package registry

import "fmt"

// ResourceType is the closed set of kinds a ResourceId can refer to.
type ResourceType uint8

// The closed set of resource kinds the registry tracks.
const (
	ResourceSession ResourceType = iota
	ResourceProcess
	ResourceSharedMemory
	ResourceFuture
	ResourceOther
)

func (t ResourceType) String() string {
	switch t {
	case ResourceSession:
		return "session"
	case ResourceProcess:
		return "process"
	case ResourceSharedMemory:
		return "shared_memory"
	case ResourceFuture:
		return "future"
	case ResourceOther:
		return "other"
	default:
		return "unknown"
	}
}

// ResourceId is a process-wide opaque identifier for an entry in the
// resource registry. It never repeats for the lifetime of the process.
type ResourceId uint64

// String renders the id for logs and audit events.
func (id ResourceId) String() string {
	return fmt.Sprintf("res:%d", uint64(id))
}

// SharedId aliases a ResourceId for use across instances, e.g. a shared
// memory region's id as seen by an instance it was shared into rather than
// the instance that allocated it.
type SharedId uint64

// String renders the id for logs and audit events.
func (id SharedId) String() string {
	return fmt.Sprintf("shared:%d", uint64(id))
}

// SlotId indexes a single guest instance's local slot table. Slot ids are
// reused once freed, unlike ResourceId.
type SlotId uint32

// String renders the id for logs and audit events.
func (id SlotId) String() string {
	return fmt.Sprintf("slot:%d", uint32(id))
}

// DependencyId is a 16-byte derived singleton key, produced by taking a
// blake3 prefix of a stable string naming the dependency. Two callers that
// derive from the same string always land on the same DependencyId, which
// is what lets register_singleton / lookup_singleton agree on an id without
// a side channel.
type DependencyId [16]byte

// String renders the id as hex for logs and audit events.
func (id DependencyId) String() string {
	return fmt.Sprintf("%x", [16]byte(id))
}
