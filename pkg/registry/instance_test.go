package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceAllocateLookupFree(t *testing.T) {
	r := NewRegistry()
	ir := NewInstanceRegistry(r)

	res := r.Insert(ResourceOther, "x")
	slot := ir.Allocate(ResourceOther, res)

	got, kind, regErr := ir.Lookup(slot)
	require.Nil(t, regErr)
	assert.Equal(t, res, got)
	assert.Equal(t, ResourceOther, kind)

	freed, regErr := ir.Free(slot)
	require.Nil(t, regErr)
	assert.Equal(t, res, freed)

	_, _, regErr = ir.Lookup(slot)
	require.NotNil(t, regErr)
}

func TestInstanceFreedSlotsAreReused(t *testing.T) {
	r := NewRegistry()
	ir := NewInstanceRegistry(r)

	res := r.Insert(ResourceOther, "x")
	slot1 := ir.Allocate(ResourceOther, res)
	_, _ = ir.Free(slot1)

	res2 := r.Insert(ResourceOther, "y")
	slot2 := ir.Allocate(ResourceOther, res2)

	assert.Equal(t, slot1, slot2)
}

func TestInstanceTeardownAbandonsFuturesFirst(t *testing.T) {
	r := NewRegistry()
	ir := NewInstanceRegistry(r)

	fut := NewFutureSharedState()
	futID := r.Insert(ResourceFuture, fut)
	ir.Allocate(ResourceFuture, futID)

	otherID := r.Insert(ResourceOther, "session-ish")
	ir.Allocate(ResourceOther, otherID)

	var abandoned []ResourceId
	ir.Teardown(func(id ResourceId) { abandoned = append(abandoned, id) })

	require.Len(t, abandoned, 1)
	assert.Equal(t, futID, abandoned[0])

	// non-future slots are removed from the process-wide registry outright.
	_, regErr := Lookup[string](r, otherID)
	require.NotNil(t, regErr)

	// the future's own entry survives teardown; only its slot is gone, and
	// the caller is responsible for actually abandoning the shared state.
	_, regErr = Lookup[*FutureSharedState](r, futID)
	assert.Nil(t, regErr)
}
