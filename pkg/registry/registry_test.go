package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

type fakeResource struct{ name string }

func TestRegistryInsertLookupRemove(t *testing.T) {
	r := NewRegistry()

	id := r.Insert(ResourceOther, &fakeResource{name: "a"})
	kind, ok := r.Kind(id)
	require.True(t, ok)
	assert.Equal(t, ResourceOther, kind)

	h, regErr := Lookup[*fakeResource](r, id)
	require.Nil(t, regErr)
	assert.Equal(t, "a", h.Value.name)

	require.Nil(t, r.Remove(id))
	_, regErr = Lookup[*fakeResource](r, id)
	require.NotNil(t, regErr)
	assert.True(t, kernelerr.IsRegNotFound(regErr))
}

func TestRegistryLookupWrongKind(t *testing.T) {
	r := NewRegistry()
	id := r.Insert(ResourceOther, 42)

	_, regErr := Lookup[*fakeResource](r, id)
	require.NotNil(t, regErr)
	assert.True(t, kernelerr.IsWrongKind(regErr))
}

func TestRegistryShareResolveUnshare(t *testing.T) {
	r := NewRegistry()
	id := r.Insert(ResourceSharedMemory, &fakeResource{name: "shm"})

	sid := r.Share(id)
	resolved, regErr := r.Resolve(sid)
	require.Nil(t, regErr)
	assert.Equal(t, id, resolved)

	r.Unshare(sid)
	_, regErr = r.Resolve(sid)
	require.NotNil(t, regErr)
	assert.True(t, kernelerr.IsRegNotFound(regErr))

	// unsharing an alias must not remove the underlying resource.
	_, regErr = Lookup[*fakeResource](r, id)
	assert.Nil(t, regErr)
}

func TestRegistryRemoveUnknown(t *testing.T) {
	r := NewRegistry()
	regErr := r.Remove(ResourceId(999))
	require.NotNil(t, regErr)
	assert.True(t, kernelerr.IsRegNotFound(regErr))
}

func TestResourceIdsNeverCollide(t *testing.T) {
	r := NewRegistry()
	seen := make(map[ResourceId]bool)
	for i := 0; i < 1000; i++ {
		id := r.Insert(ResourceOther, i)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
