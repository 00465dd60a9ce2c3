package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
)

func TestShmAllocShareAttachDetachRoundTrip(t *testing.T) {
	ctx := newFakeContext()
	arena := NewSharedMemoryDriverWithCapacity(4096)

	alloc := NewShmAllocDriver(arena)
	desc, gerr := alloc.ToTask(ctx, abi.ShmAlloc{Size: 64, Align: 8})()
	require.Nil(t, gerr)
	assert.Equal(t, abi.GuestUint(64), desc.Region.Len)

	share := ShmShareDriver{}
	sharedID, gerr := share.ToTask(ctx, abi.ShmShare{ResourceID: desc.ResourceID})()
	require.Nil(t, gerr)

	attach := ShmAttachDriver{}
	attached, gerr := attach.ToTask(ctx, abi.ShmAttach{SharedID: sharedID})()
	require.Nil(t, gerr)
	assert.Equal(t, desc.Region, attached.Region)
	assert.NotEqual(t, desc.ResourceID, attached.ResourceID)

	detach := ShmDetachDriver{}
	_, gerr = detach.ToTask(ctx, abi.ShmDetach{ResourceID: attached.ResourceID})()
	require.Nil(t, gerr)

	_, gerr = detach.ToTask(ctx, abi.ShmDetach{ResourceID: attached.ResourceID})()
	require.NotNil(t, gerr)
}

func TestShmWriteThenReadRoundTrip(t *testing.T) {
	ctx := newFakeContext()
	arena := NewSharedMemoryDriverWithCapacity(4096)

	alloc := NewShmAllocDriver(arena)
	desc, gerr := alloc.ToTask(ctx, abi.ShmAlloc{Size: 16, Align: 4})()
	require.Nil(t, gerr)

	write := NewShmWriteDriver(arena)
	_, gerr = write.ToTask(ctx, abi.ShmWrite{ResourceID: desc.ResourceID, Offset: 2, Bytes: []byte("hi")})()
	require.Nil(t, gerr)

	read := NewShmReadDriver(arena)
	got, gerr := read.ToTask(ctx, abi.ShmRead{ResourceID: desc.ResourceID, Offset: 2, Len: 2})()
	require.Nil(t, gerr)
	assert.Equal(t, []byte("hi"), got)
}

func TestShmAllocRejectsExhaustedArena(t *testing.T) {
	ctx := newFakeContext()
	arena := NewSharedMemoryDriverWithCapacity(16)
	alloc := NewShmAllocDriver(arena)

	_, gerr := alloc.ToTask(ctx, abi.ShmAlloc{Size: 16, Align: 8})()
	require.Nil(t, gerr)

	_, gerr = alloc.ToTask(ctx, abi.ShmAlloc{Size: 1, Align: 1})()
	require.NotNil(t, gerr)
	assert.True(t, kernelerr.IsWouldBlock(gerr))
}

func TestShmReadRejectsOutOfBounds(t *testing.T) {
	ctx := newFakeContext()
	arena := NewSharedMemoryDriverWithCapacity(4096)
	alloc := NewShmAllocDriver(arena)
	desc, gerr := alloc.ToTask(ctx, abi.ShmAlloc{Size: 8, Align: 4})()
	require.Nil(t, gerr)

	read := NewShmReadDriver(arena)
	_, gerr = read.ToTask(ctx, abi.ShmRead{ResourceID: desc.ResourceID, Offset: 4, Len: 8})()
	require.NotNil(t, gerr)
	assert.True(t, kernelerr.IsInvalidArgument(gerr))
}

func TestShmDriverRejectsNonSharedMemoryHandle(t *testing.T) {
	ctx := newFakeContext()
	resourceID := ctx.Registry().Registry().Insert(registry.ResourceOther, uint32(1))
	slot := ctx.Registry().Allocate(registry.ResourceOther, resourceID)

	share := ShmShareDriver{}
	_, gerr := share.ToTask(ctx, abi.ShmShare{ResourceID: abi.GuestUint(slot)})()
	require.NotNil(t, gerr)
	assert.True(t, kernelerr.IsInvalidArgument(gerr))
}
