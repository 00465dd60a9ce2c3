package services

import (
	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/registry"
)

// lookupShmRegion resolves a guest-held SlotId to the ShmRegion it names
// and the ResourceId it lives under in the process-wide registry.
func lookupShmRegion(ctx hostcall.HostcallContext, slot registry.SlotId) (abi.ShmRegion, registry.ResourceId, *kernelerr.GuestError) {
	ir := ctx.Registry()
	res, kind, regErr := ir.Lookup(slot)
	if regErr != nil {
		return abi.ShmRegion{}, 0, kernelerr.NewNotFoundError("unknown shared memory handle", regErr)
	}
	if kind != registry.ResourceSharedMemory {
		return abi.ShmRegion{}, 0, kernelerr.NewInvalidArgumentError("handle does not name shared memory", nil)
	}
	handle, regErr := registry.Lookup[abi.ShmRegion](ir.Registry(), res)
	if regErr != nil {
		return abi.ShmRegion{}, 0, kernelerr.NewNotFoundError("shared memory resource vanished", regErr)
	}
	return handle.Value, res, nil
}

// ShmAllocDriver implements shm::alloc.
type ShmAllocDriver struct{ Arena *SharedMemoryDriver }

// NewShmAllocDriver constructs a driver over the given arena.
func NewShmAllocDriver(arena *SharedMemoryDriver) *ShmAllocDriver {
	return &ShmAllocDriver{Arena: arena}
}

// ToTask implements hostcall.Contract.
func (d *ShmAllocDriver) ToTask(ctx hostcall.HostcallContext, input abi.ShmAlloc) hostcall.Task[abi.ShmDescriptor] {
	return func() (abi.ShmDescriptor, *kernelerr.GuestError) {
		region, err := d.Arena.Alloc(input)
		if err != nil {
			return abi.ShmDescriptor{}, asGuestError(err)
		}
		resourceID := ctx.Registry().Registry().Insert(registry.ResourceSharedMemory, region)
		slot := ctx.Registry().Allocate(registry.ResourceSharedMemory, resourceID)
		sharedID := ctx.Registry().Registry().Share(resourceID)
		return abi.ShmDescriptor{
			ResourceID: abi.GuestUint(slot),
			SharedID:   abi.GuestResourceId(sharedID),
			Region:     region,
		}, nil
	}
}

// ShmShareDriver implements shm::share: mint a fresh SharedId alias for an
// instance-local shared memory handle.
type ShmShareDriver struct{}

// ToTask implements hostcall.Contract.
func (ShmShareDriver) ToTask(ctx hostcall.HostcallContext, input abi.ShmShare) hostcall.Task[abi.GuestResourceId] {
	return func() (abi.GuestResourceId, *kernelerr.GuestError) {
		_, resourceID, gerr := lookupShmRegion(ctx, registry.SlotId(input.ResourceID))
		if gerr != nil {
			return 0, gerr
		}
		sharedID := ctx.Registry().Registry().Share(resourceID)
		return abi.GuestResourceId(sharedID), nil
	}
}

// ShmAttachDriver implements shm::attach: resolve a SharedId and bind it
// into the calling instance's own slot table.
type ShmAttachDriver struct{}

// ToTask implements hostcall.Contract.
func (ShmAttachDriver) ToTask(ctx hostcall.HostcallContext, input abi.ShmAttach) hostcall.Task[abi.ShmDescriptor] {
	return func() (abi.ShmDescriptor, *kernelerr.GuestError) {
		reg := ctx.Registry().Registry()
		resourceID, regErr := reg.Resolve(registry.SharedId(input.SharedID))
		if regErr != nil {
			return abi.ShmDescriptor{}, kernelerr.NewNotFoundError("unknown shared handle", regErr)
		}
		if kind, ok := reg.Kind(resourceID); !ok || kind != registry.ResourceSharedMemory {
			return abi.ShmDescriptor{}, kernelerr.NewInvalidArgumentError("shared handle does not name shared memory", nil)
		}
		handle, regErr := registry.Lookup[abi.ShmRegion](reg, resourceID)
		if regErr != nil {
			return abi.ShmDescriptor{}, kernelerr.NewNotFoundError("shared memory resource vanished", regErr)
		}
		slot := ctx.Registry().Allocate(registry.ResourceSharedMemory, resourceID)
		return abi.ShmDescriptor{
			ResourceID: abi.GuestUint(slot),
			SharedID:   input.SharedID,
			Region:     handle.Value,
		}, nil
	}
}

// ShmDetachDriver implements shm::detach: drop this instance's local
// binding without disturbing the process-wide resource, since other
// instances may still hold it attached or shared.
type ShmDetachDriver struct{}

// ToTask implements hostcall.Contract.
func (ShmDetachDriver) ToTask(ctx hostcall.HostcallContext, input abi.ShmDetach) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		if _, _, gerr := lookupShmRegion(ctx, registry.SlotId(input.ResourceID)); gerr != nil {
			return abi.Empty{}, gerr
		}
		if _, regErr := ctx.Registry().Free(registry.SlotId(input.ResourceID)); regErr != nil {
			return abi.Empty{}, kernelerr.NewNotFoundError("handle already detached", regErr)
		}
		return abi.Empty{}, nil
	}
}

// ShmReadDriver implements shm::read.
type ShmReadDriver struct{ Arena *SharedMemoryDriver }

// NewShmReadDriver constructs a driver over the given arena.
func NewShmReadDriver(arena *SharedMemoryDriver) *ShmReadDriver {
	return &ShmReadDriver{Arena: arena}
}

// ToTask implements hostcall.Contract.
func (d *ShmReadDriver) ToTask(ctx hostcall.HostcallContext, input abi.ShmRead) hostcall.Task[[]byte] {
	return func() ([]byte, *kernelerr.GuestError) {
		region, _, gerr := lookupShmRegion(ctx, registry.SlotId(input.ResourceID))
		if gerr != nil {
			return nil, gerr
		}
		out, err := d.Arena.Read(region, input.Offset, input.Len)
		if err != nil {
			return nil, asGuestError(err)
		}
		return out, nil
	}
}

// ShmWriteDriver implements shm::write.
type ShmWriteDriver struct{ Arena *SharedMemoryDriver }

// NewShmWriteDriver constructs a driver over the given arena.
func NewShmWriteDriver(arena *SharedMemoryDriver) *ShmWriteDriver {
	return &ShmWriteDriver{Arena: arena}
}

// ToTask implements hostcall.Contract.
func (d *ShmWriteDriver) ToTask(ctx hostcall.HostcallContext, input abi.ShmWrite) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		region, _, gerr := lookupShmRegion(ctx, registry.SlotId(input.ResourceID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}
		if err := d.Arena.Write(region, input.Offset, input.Bytes); err != nil {
			return abi.Empty{}, asGuestError(err)
		}
		return abi.Empty{}, nil
	}
}
