package services

import (
	"sync"
	"sync/atomic"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// defaultArenaBytes is the default size of the host-backed shared memory
// arena: 256 MiB, matching the reference runtime's allocator.
const defaultArenaBytes = 256 * 1024 * 1024

// SharedMemoryDriver is a bump-allocated shared memory arena: shm::alloc
// claims a region by racing a lock-free offset counter forward, and the
// allocation never moves or is reclaimed until the arena itself is
// dropped. Regions are addressed by byte range rather than by a separate
// allocation handle, so shm::read and shm::write index straight into the
// backing buffer once a caller's ShmRegion is known.
type SharedMemoryDriver struct {
	dataMu     sync.RWMutex
	data       []byte
	nextOffset atomic.Uint64
	arenaBytes uint64
}

// NewSharedMemoryDriver constructs an arena of the default size.
func NewSharedMemoryDriver() *SharedMemoryDriver {
	return NewSharedMemoryDriverWithCapacity(defaultArenaBytes)
}

// NewSharedMemoryDriverWithCapacity constructs an arena of the given size,
// primarily so tests can exercise exhaustion without allocating 256 MiB.
func NewSharedMemoryDriverWithCapacity(arenaBytes uint64) *SharedMemoryDriver {
	return &SharedMemoryDriver{data: make([]byte, arenaBytes), arenaBytes: arenaBytes}
}

// Alloc claims a size-byte, align-aligned region of the arena.
func (d *SharedMemoryDriver) Alloc(request abi.ShmAlloc) (abi.ShmRegion, error) {
	size := uint64(request.Size)
	align := uint64(request.Align)
	if size == 0 {
		return abi.ShmRegion{}, kernelerr.NewInvalidArgumentError("shm alloc size must be non-zero", nil)
	}
	if align == 0 || align&(align-1) != 0 {
		return abi.ShmRegion{}, kernelerr.NewInvalidArgumentError("shm alloc alignment must be a power of two", nil)
	}

	for {
		current := d.nextOffset.Load()
		aligned, ok := alignUp(current, align)
		if !ok {
			return abi.ShmRegion{}, kernelerr.NewInvalidArgumentError("shm alloc alignment overflow", nil)
		}
		end := aligned + size
		if end < aligned {
			return abi.ShmRegion{}, kernelerr.NewInvalidArgumentError("shm alloc size overflow", nil)
		}
		if end > d.arenaBytes {
			return abi.ShmRegion{}, kernelerr.NewWouldBlockError("shared memory arena exhausted", nil)
		}
		if d.nextOffset.CompareAndSwap(current, end) {
			return abi.ShmRegion{Offset: abi.GuestUint(aligned), Len: abi.GuestUint(size)}, nil
		}
	}
}

// Read copies length bytes starting at offset within region out of the
// arena.
func (d *SharedMemoryDriver) Read(region abi.ShmRegion, offset, length abi.GuestUint) ([]byte, error) {
	if offset > region.Len || length > region.Len-offset {
		return nil, kernelerr.NewInvalidArgumentError("shm read out of bounds", nil)
	}
	start := uint64(region.Offset) + uint64(offset)
	out := make([]byte, length)
	d.dataMu.RLock()
	copy(out, d.data[start:start+uint64(length)])
	d.dataMu.RUnlock()
	return out, nil
}

// Write copies bytes into region starting at offset.
func (d *SharedMemoryDriver) Write(region abi.ShmRegion, offset abi.GuestUint, bytes []byte) error {
	length := abi.GuestUint(len(bytes))
	if offset > region.Len || length > region.Len-offset {
		return kernelerr.NewInvalidArgumentError("shm write out of bounds", nil)
	}
	start := uint64(region.Offset) + uint64(offset)
	d.dataMu.Lock()
	copy(d.data[start:start+uint64(length)], bytes)
	d.dataMu.Unlock()
	return nil
}

func alignUp(value, align uint64) (uint64, bool) {
	mask := align - 1
	sum := value + mask
	if sum < value {
		return 0, false
	}
	return sum &^ mask, true
}
