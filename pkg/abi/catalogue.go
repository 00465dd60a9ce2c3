package abi

import "github.com/stacklok/vkernel/pkg/session"

// HostcallMeta is the type-erased metadata describing one hostcall: its
// wasm import symbol and the capability required to invoke it.
type HostcallMeta struct {
	Name       string
	Capability session.Capability
}

// Hostcall is the typed descriptor for a single linking point. The type
// parameters exist so that a driver's Contract and the catalogue entry that
// names it are checked against each other at the call site that wires them
// together, the way the reference implementation's macro-generated
// descriptors are.
type Hostcall[I, O any] struct {
	meta HostcallMeta
}

// NewHostcall constructs a catalogue entry. It is only ever called from the
// package-level vars below; application code should reference those vars,
// not construct its own.
func NewHostcall[I, O any](name string, capability session.Capability) Hostcall[I, O] {
	return Hostcall[I, O]{meta: HostcallMeta{Name: name, Capability: capability}}
}

// Name returns the hostcall's wasm import symbol.
func (h Hostcall[I, O]) Name() string { return h.meta.Name }

// Capability returns the capability required to invoke the hostcall.
func (h Hostcall[I, O]) Capability() session.Capability { return h.meta.Capability }

// Meta returns the type-erased metadata for the hostcall.
func (h Hostcall[I, O]) Meta() HostcallMeta { return h.meta }

// Empty is the unit type used where the reference implementation's
// catalogue declares `()` as a hostcall's input or output.
type Empty struct{}

// Validate implements Validatable for Empty; there is nothing to check.
func (Empty) Validate() error { return nil }

// The canonical hostcall catalogue. Every symbol the sandbox engine links
// under its host module namespace is declared exactly once here.
var (
	SessionCreateCall         = NewHostcall[SessionCreate, GuestUint]("vkernel::session::create", session.SessionLifecycle)
	SessionRemoveCall         = NewHostcall[SessionRemove, Empty]("vkernel::session::remove", session.SessionLifecycle)
	SessionAddEntitlementCall = NewHostcall[SessionEntitlement, Empty]("vkernel::session::add_entitlement", session.SessionLifecycle)
	SessionRmEntitlementCall  = NewHostcall[SessionEntitlement, Empty]("vkernel::session::rm_entitlement", session.SessionLifecycle)
	SessionAddResourceCall    = NewHostcall[SessionResource, GuestUint]("vkernel::session::add_resource", session.SessionLifecycle)
	SessionRmResourceCall     = NewHostcall[SessionResource, GuestUint]("vkernel::session::rm_resource", session.SessionLifecycle)

	SingletonRegisterCall = NewHostcall[SingletonRegister, Empty]("vkernel::singleton::register", session.SingletonRegistry)
	SingletonLookupCall   = NewHostcall[SingletonLookup, GuestResourceId]("vkernel::singleton::lookup", session.SingletonLookup)

	TimeNowCall   = NewHostcall[Empty, TimeNow]("vkernel::time::now", session.TimeRead)
	TimeSleepCall = NewHostcall[TimeSleep, Empty]("vkernel::time::sleep", session.TimeRead)

	ProcessStartCall = NewHostcall[ProcessStart, GuestResourceId]("vkernel::process::start", session.ProcessLifecycle)
	ProcessStopCall  = NewHostcall[GuestResourceId, Empty]("vkernel::process::stop", session.ProcessLifecycle)

	ShmAllocCall  = NewHostcall[ShmAlloc, ShmDescriptor]("vkernel::shm::alloc", session.SharedMemory)
	ShmShareCall  = NewHostcall[ShmShare, GuestResourceId]("vkernel::shm::share", session.SharedMemory)
	ShmAttachCall = NewHostcall[ShmAttach, ShmDescriptor]("vkernel::shm::attach", session.SharedMemory)
	ShmDetachCall = NewHostcall[ShmDetach, Empty]("vkernel::shm::detach", session.SharedMemory)
	ShmReadCall   = NewHostcall[ShmRead, []byte]("vkernel::shm::read", session.SharedMemory)
	ShmWriteCall  = NewHostcall[ShmWrite, Empty]("vkernel::shm::write", session.SharedMemory)
)

// ALL is the complete catalogue of hostcalls, in the order the wazero
// engine registers them under its host module namespace.
var ALL = []HostcallMeta{
	SessionCreateCall.Meta(),
	SessionRemoveCall.Meta(),
	SessionAddEntitlementCall.Meta(),
	SessionRmEntitlementCall.Meta(),
	SessionAddResourceCall.Meta(),
	SessionRmResourceCall.Meta(),
	SingletonRegisterCall.Meta(),
	SingletonLookupCall.Meta(),
	TimeNowCall.Meta(),
	TimeSleepCall.Meta(),
	ProcessStartCall.Meta(),
	ProcessStopCall.Meta(),
	ShmAllocCall.Meta(),
	ShmShareCall.Meta(),
	ShmAttachCall.Meta(),
	ShmDetachCall.Meta(),
	ShmReadCall.Meta(),
	ShmWriteCall.Meta(),
}

// ByCapability groups the catalogue by the capability each entry requires.
func ByCapability() map[session.Capability][]HostcallMeta {
	out := make(map[session.Capability][]HostcallMeta)
	for _, meta := range ALL {
		out[meta.Capability] = append(out[meta.Capability], meta)
	}
	return out
}
