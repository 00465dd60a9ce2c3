package services

import (
	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/audit"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/registry"
)

// SingletonRegisterDriver implements singleton::register: resource arrives
// as a SharedId and is resolved back to its process-wide ResourceId before
// registration.
type SingletonRegisterDriver struct{ Capability SingletonCapability }

// NewSingletonRegisterDriver constructs a driver over the given policy.
func NewSingletonRegisterDriver(cap SingletonCapability) *SingletonRegisterDriver {
	return &SingletonRegisterDriver{Capability: cap}
}

// ToTask implements hostcall.Contract.
func (d *SingletonRegisterDriver) ToTask(ctx hostcall.HostcallContext, input abi.SingletonRegister) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		reg := ctx.Registry().Registry()
		resourceID, regErr := reg.Resolve(registry.SharedId(input.Resource))
		if regErr != nil {
			return abi.Empty{}, kernelerr.NewNotFoundError("unknown shared handle", regErr)
		}
		if err := d.Capability.Register(reg, input.ID, resourceID); err != nil {
			return abi.Empty{}, asGuestError(err)
		}
		audit.Emit(audit.Event{Type: audit.EventSingletonRegister, Outcome: audit.OutcomeSuccess,
			Target: uint64(resourceID), Detail: input.ID.String()})
		return abi.Empty{}, nil
	}
}

// SingletonLookupDriver implements singleton::lookup, handing the caller a
// fresh SharedId alias for whatever resource won the registration race.
type SingletonLookupDriver struct{ Capability SingletonCapability }

// NewSingletonLookupDriver constructs a driver over the given policy.
func NewSingletonLookupDriver(cap SingletonCapability) *SingletonLookupDriver {
	return &SingletonLookupDriver{Capability: cap}
}

// ToTask implements hostcall.Contract.
func (d *SingletonLookupDriver) ToTask(ctx hostcall.HostcallContext, input abi.SingletonLookup) hostcall.Task[abi.GuestResourceId] {
	return func() (abi.GuestResourceId, *kernelerr.GuestError) {
		reg := ctx.Registry().Registry()
		resourceID, err := d.Capability.Lookup(reg, input.ID)
		if err != nil {
			return 0, asGuestError(err)
		}
		return abi.GuestResourceId(reg.Share(resourceID)), nil
	}
}
