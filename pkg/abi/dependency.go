package abi

import (
	"lukechampine.com/blake3"

	"github.com/stacklok/vkernel/pkg/registry"
)

// DeriveDependencyId derives the 16-byte DependencyId for a stable
// dependency name by taking the first 16 bytes of its blake3 hash. Any two
// callers deriving from the same name land on the same DependencyId without
// coordinating, which is what lets singleton::register/lookup agree on a
// key across unrelated guest modules.
func DeriveDependencyId(name string) registry.DependencyId {
	sum := blake3.Sum256([]byte(name))
	var id registry.DependencyId
	copy(id[:], sum[:16])
	return id
}
