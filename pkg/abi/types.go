// Package abi defines the wire format shared between host and guest: the
// payload structs carried by each hostcall, the canonical binary codec used
// to (de)serialize them, and the status word a driver's poll hook encodes
// into the guest-visible result slot.
package abi

import (
	"github.com/stacklok/vkernel/pkg/registry"
	"github.com/stacklok/vkernel/pkg/session"
)

// GuestUint is the guest's native handle width: slot ids, resource ids as
// seen from guest code, and similar small integers cross the ABI as this
// type.
type GuestUint = uint32

// GuestResourceId is a resource id as seen by the guest across the ABI —
// wide enough to carry either a SharedId or a raw process-wide ResourceId
// (process handles and session::add_resource targets cross as the latter).
type GuestResourceId = uint64

// SessionCreate is the payload for session::create.
type SessionCreate struct {
	SessionID GuestUint `cbor:"1,keyasint"`
	Pubkey    [32]byte  `cbor:"2,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (SessionCreate) Validate() error { return nil }

// SessionRemove is the payload for session::remove.
type SessionRemove struct {
	SessionID GuestUint `cbor:"1,keyasint"`
	TargetID  GuestUint `cbor:"2,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (SessionRemove) Validate() error { return nil }

// SessionEntitlement is the payload for session::add_entitlement and
// session::rm_entitlement.
type SessionEntitlement struct {
	SessionID  GuestUint          `cbor:"1,keyasint"`
	TargetID   GuestUint          `cbor:"2,keyasint"`
	Capability session.Capability `cbor:"3,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (SessionEntitlement) Validate() error { return nil }

// SessionResource is the payload for session::add_resource and
// session::rm_resource.
type SessionResource struct {
	SessionID  GuestUint           `cbor:"1,keyasint"`
	TargetID   GuestUint           `cbor:"2,keyasint"`
	Capability session.Capability  `cbor:"3,keyasint"`
	ResourceID GuestResourceId     `cbor:"4,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (SessionResource) Validate() error { return nil }

// SingletonRegister is the payload for singleton::register.
type SingletonRegister struct {
	ID       registry.DependencyId `cbor:"1,keyasint"`
	Resource GuestResourceId       `cbor:"2,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (SingletonRegister) Validate() error { return nil }

// SingletonLookup is the payload for singleton::lookup.
type SingletonLookup struct {
	ID registry.DependencyId `cbor:"1,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (SingletonLookup) Validate() error { return nil }

// TimeNow is the result payload for time::now.
type TimeNow struct {
	UnixMs      uint64 `cbor:"1,keyasint"`
	MonotonicMs uint64 `cbor:"2,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (TimeNow) Validate() error { return nil }

// TimeSleep is the payload for time::sleep.
type TimeSleep struct {
	DurationMs uint64 `cbor:"1,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (TimeSleep) Validate() error { return nil }

// ShmAlloc is the payload for shm::alloc.
type ShmAlloc struct {
	Size  GuestUint `cbor:"1,keyasint"`
	Align GuestUint `cbor:"2,keyasint"`
}

// Validate reports whether the decoded payload is well-formed: align must
// be a non-zero power of two, matching the arena's bump allocator.
func (a ShmAlloc) Validate() error {
	if a.Align == 0 || a.Align&(a.Align-1) != 0 {
		return errInvalidAlignment
	}
	return nil
}

// ShmRegion is a byte range inside the shared memory arena.
type ShmRegion struct {
	Offset GuestUint `cbor:"1,keyasint"`
	Len    GuestUint `cbor:"2,keyasint"`
}

// ShmDescriptor is the result payload for shm::alloc and shm::attach.
type ShmDescriptor struct {
	ResourceID GuestUint       `cbor:"1,keyasint"`
	SharedID   GuestResourceId `cbor:"2,keyasint"`
	Region     ShmRegion       `cbor:"3,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (ShmDescriptor) Validate() error { return nil }

// ShmShare is the payload for shm::share.
type ShmShare struct {
	ResourceID GuestUint `cbor:"1,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (ShmShare) Validate() error { return nil }

// ShmAttach is the payload for shm::attach.
type ShmAttach struct {
	SharedID GuestResourceId `cbor:"1,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (ShmAttach) Validate() error { return nil }

// ShmDetach is the payload for shm::detach.
type ShmDetach struct {
	ResourceID GuestUint `cbor:"1,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (ShmDetach) Validate() error { return nil }

// ShmRead is the payload for shm::read.
type ShmRead struct {
	ResourceID GuestUint `cbor:"1,keyasint"`
	Offset     GuestUint `cbor:"2,keyasint"`
	Len        GuestUint `cbor:"3,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (ShmRead) Validate() error { return nil }

// ShmWrite is the payload for shm::write.
type ShmWrite struct {
	ResourceID GuestUint `cbor:"1,keyasint"`
	Offset     GuestUint `cbor:"2,keyasint"`
	Bytes      []byte    `cbor:"3,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (ShmWrite) Validate() error { return nil }

// AbiScalarType is the closed set of scalar kinds an entrypoint parameter
// can declare.
type AbiScalarType uint8

// Scalar kinds.
const (
	ScalarI32 AbiScalarType = iota
	ScalarI64
	ScalarU64
)

// AbiParam is one declared parameter of a guest entrypoint's signature:
// either a scalar of a given kind, or an opaque buffer.
type AbiParam struct {
	IsBuffer bool          `cbor:"1,keyasint"`
	Scalar   AbiScalarType `cbor:"2,keyasint"`
}

// AbiScalarValue is a tagged scalar argument or return value.
type AbiScalarValue struct {
	Kind AbiScalarType `cbor:"1,keyasint"`
	I32  int32         `cbor:"2,keyasint"`
	I64  int64         `cbor:"3,keyasint"`
	U64  uint64        `cbor:"4,keyasint"`
}

// EntrypointArg is one argument a guest supplies when invoking
// process::start: a literal scalar, a resource handle to be resolved
// against the caller's instance registry, or a literal buffer.
type EntrypointArg struct {
	Scalar     *AbiScalarValue `cbor:"1,keyasint,omitempty"`
	ResourceID *GuestResourceId `cbor:"2,keyasint,omitempty"`
	Buffer     []byte          `cbor:"3,keyasint,omitempty"`
}

// EntrypointSignature is the declared shape of a guest entrypoint, checked
// against EntrypointInvocation.Args before process::start proceeds.
type EntrypointSignature struct {
	Params []AbiParam `cbor:"1,keyasint"`
}

// EntrypointInvocation names the entrypoint a process::start call should
// run and the arguments to pass it.
type EntrypointInvocation struct {
	Entrypoint string         `cbor:"1,keyasint"`
	Signature  EntrypointSignature `cbor:"2,keyasint"`
	Args       []EntrypointArg `cbor:"3,keyasint"`
}

// ProcessStart is the payload for process::start.
type ProcessStart struct {
	ModuleID     string               `cbor:"1,keyasint"`
	Name         string               `cbor:"2,keyasint"`
	Capabilities []session.Capability `cbor:"3,keyasint"`
	Invocation   EntrypointInvocation `cbor:"4,keyasint"`
}

// Validate reports whether the decoded payload is well-formed.
func (p ProcessStart) Validate() error {
	if p.ModuleID == "" {
		return errEmptyModuleID
	}
	if len(p.Invocation.Signature.Params) != len(p.Invocation.Args) {
		return errArityMismatch
	}
	return nil
}
