package services

import (
	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/audit"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/registry"
	"github.com/stacklok/vkernel/pkg/session"
)

// lookupSession resolves a guest-held SlotId to the Session it names,
// rejecting slots that exist but point at some other resource kind.
func lookupSession(ctx hostcall.HostcallContext, slot registry.SlotId) (*session.Session, registry.ResourceId, *kernelerr.GuestError) {
	ir := ctx.Registry()
	res, kind, regErr := ir.Lookup(slot)
	if regErr != nil {
		return nil, 0, kernelerr.NewNotFoundError("unknown session handle", regErr)
	}
	if kind != registry.ResourceSession {
		return nil, 0, kernelerr.NewInvalidArgumentError("handle does not name a session", nil)
	}
	handle, regErr := registry.Lookup[*session.Session](ir.Registry(), res)
	if regErr != nil {
		return nil, 0, kernelerr.NewNotFoundError("session resource vanished", regErr)
	}
	return handle.Value, res, nil
}

// SessionCreateDriver implements session::create: a session holding the
// SessionLifecycle entitlement creates a child with no entitlements and is
// granted SessionLifecycle over the child.
type SessionCreateDriver struct{ Lifecycle SessionLifecycle }

// NewSessionCreateDriver constructs a driver over the given policy.
func NewSessionCreateDriver(lc SessionLifecycle) *SessionCreateDriver {
	return &SessionCreateDriver{Lifecycle: lc}
}

// ToTask implements hostcall.Contract.
func (d *SessionCreateDriver) ToTask(ctx hostcall.HostcallContext, input abi.SessionCreate) hostcall.Task[abi.GuestUint] {
	return func() (abi.GuestUint, *kernelerr.GuestError) {
		parent, parentResID, gerr := lookupSession(ctx, registry.SlotId(input.SessionID))
		if gerr != nil {
			return 0, gerr
		}
		if !parent.HasEntitlement(session.SessionLifecycle) {
			return 0, kernelerr.NewPermissionDeniedError("parent does not hold session_lifecycle", nil)
		}

		child, err := d.Lifecycle.Create(parent, input.Pubkey)
		if err != nil {
			return 0, asGuestError(err)
		}

		childResourceID := ctx.Registry().Registry().Insert(registry.ResourceSession, child)
		childSlot := ctx.Registry().Allocate(registry.ResourceSession, childResourceID)

		granted, regErr := parent.AddResource(session.SessionLifecycle, childResourceID)
		if regErr != nil {
			return 0, kernelerr.NewPermissionDeniedError("parent does not hold session_lifecycle", regErr)
		}
		if !granted {
			return 0, kernelerr.NewPermissionDeniedError("child already granted", nil)
		}

		audit.Emit(audit.Event{Type: audit.EventSessionCreate, Outcome: audit.OutcomeSuccess,
			Actor: uint64(parentResID), Target: uint64(childResourceID)})
		return abi.GuestUint(childSlot), nil
	}
}

// SessionRemoveDriver implements session::remove.
type SessionRemoveDriver struct{ Lifecycle SessionLifecycle }

// NewSessionRemoveDriver constructs a driver over the given policy.
func NewSessionRemoveDriver(lc SessionLifecycle) *SessionRemoveDriver {
	return &SessionRemoveDriver{Lifecycle: lc}
}

// ToTask implements hostcall.Contract.
func (d *SessionRemoveDriver) ToTask(ctx hostcall.HostcallContext, input abi.SessionRemove) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		parent, _, gerr := lookupSession(ctx, registry.SlotId(input.SessionID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}
		target, targetResID, gerr := lookupSession(ctx, registry.SlotId(input.TargetID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}

		if !parent.Authorise(session.SessionLifecycle, targetResID) {
			return abi.Empty{}, kernelerr.NewPermissionDeniedError("not authorised over target session", nil)
		}

		if err := d.Lifecycle.Remove(target); err != nil {
			return abi.Empty{}, asGuestError(err)
		}

		if _, regErr := ctx.Registry().Free(registry.SlotId(input.TargetID)); regErr != nil {
			return abi.Empty{}, kernelerr.NewNotFoundError("target slot already freed", regErr)
		}
		_ = ctx.Registry().Registry().Remove(targetResID)
		_, _ = parent.RmResource(session.SessionLifecycle, targetResID)

		audit.Emit(audit.Event{Type: audit.EventSessionRemove, Outcome: audit.OutcomeSuccess,
			Target: uint64(targetResID)})
		return abi.Empty{}, nil
	}
}

// SessionAddEntitlementDriver implements session::add_entitlement.
type SessionAddEntitlementDriver struct{ Lifecycle SessionLifecycle }

// NewSessionAddEntitlementDriver constructs a driver over the given policy.
func NewSessionAddEntitlementDriver(lc SessionLifecycle) *SessionAddEntitlementDriver {
	return &SessionAddEntitlementDriver{Lifecycle: lc}
}

// ToTask implements hostcall.Contract.
func (d *SessionAddEntitlementDriver) ToTask(ctx hostcall.HostcallContext, input abi.SessionEntitlement) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		parent, _, gerr := lookupSession(ctx, registry.SlotId(input.SessionID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}
		target, targetResID, gerr := lookupSession(ctx, registry.SlotId(input.TargetID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}
		if !parent.Authorise(session.SessionLifecycle, targetResID) {
			return abi.Empty{}, kernelerr.NewPermissionDeniedError("not authorised over target session", nil)
		}
		if err := d.Lifecycle.AddEntitlement(target, input.Capability); err != nil {
			return abi.Empty{}, asGuestError(err)
		}
		audit.Emit(audit.Event{Type: audit.EventSessionAddEntitlement, Outcome: audit.OutcomeSuccess,
			Target: uint64(targetResID), Detail: input.Capability.String()})
		return abi.Empty{}, nil
	}
}

// SessionRemoveEntitlementDriver implements session::rm_entitlement.
type SessionRemoveEntitlementDriver struct{ Lifecycle SessionLifecycle }

// NewSessionRemoveEntitlementDriver constructs a driver over the given policy.
func NewSessionRemoveEntitlementDriver(lc SessionLifecycle) *SessionRemoveEntitlementDriver {
	return &SessionRemoveEntitlementDriver{Lifecycle: lc}
}

// ToTask implements hostcall.Contract.
func (d *SessionRemoveEntitlementDriver) ToTask(ctx hostcall.HostcallContext, input abi.SessionEntitlement) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		parent, _, gerr := lookupSession(ctx, registry.SlotId(input.SessionID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}
		target, targetResID, gerr := lookupSession(ctx, registry.SlotId(input.TargetID))
		if gerr != nil {
			return abi.Empty{}, gerr
		}
		if !parent.Authorise(session.SessionLifecycle, targetResID) {
			return abi.Empty{}, kernelerr.NewPermissionDeniedError("not authorised over target session", nil)
		}
		if err := d.Lifecycle.RmEntitlement(target, input.Capability); err != nil {
			return abi.Empty{}, asGuestError(err)
		}
		audit.Emit(audit.Event{Type: audit.EventSessionRemoveEntitlement, Outcome: audit.OutcomeSuccess,
			Target: uint64(targetResID), Detail: input.Capability.String()})
		return abi.Empty{}, nil
	}
}

// SessionAddResourceDriver implements session::add_resource. It returns 1
// if the grant was new and 0 if the target already held resource under
// capability.
type SessionAddResourceDriver struct{ Lifecycle SessionLifecycle }

// NewSessionAddResourceDriver constructs a driver over the given policy.
func NewSessionAddResourceDriver(lc SessionLifecycle) *SessionAddResourceDriver {
	return &SessionAddResourceDriver{Lifecycle: lc}
}

// ToTask implements hostcall.Contract.
func (d *SessionAddResourceDriver) ToTask(ctx hostcall.HostcallContext, input abi.SessionResource) hostcall.Task[abi.GuestUint] {
	return func() (abi.GuestUint, *kernelerr.GuestError) {
		parent, _, gerr := lookupSession(ctx, registry.SlotId(input.SessionID))
		if gerr != nil {
			return 0, gerr
		}
		target, targetResID, gerr := lookupSession(ctx, registry.SlotId(input.TargetID))
		if gerr != nil {
			return 0, gerr
		}
		if !parent.Authorise(session.SessionLifecycle, targetResID) {
			return 0, kernelerr.NewPermissionDeniedError("not authorised over target session", nil)
		}
		added, err := d.Lifecycle.AddResource(target, input.Capability, registry.ResourceId(input.ResourceID))
		if err != nil {
			return 0, asGuestError(err)
		}
		audit.Emit(audit.Event{Type: audit.EventSessionAddResource, Outcome: audit.OutcomeSuccess,
			Target: uint64(targetResID), Detail: input.Capability.String()})
		if added {
			return 1, nil
		}
		return 0, nil
	}
}

// SessionRemoveResourceDriver implements session::rm_resource. It returns 1
// if the resource had been granted and 0 if it was already absent.
type SessionRemoveResourceDriver struct{ Lifecycle SessionLifecycle }

// NewSessionRemoveResourceDriver constructs a driver over the given policy.
func NewSessionRemoveResourceDriver(lc SessionLifecycle) *SessionRemoveResourceDriver {
	return &SessionRemoveResourceDriver{Lifecycle: lc}
}

// ToTask implements hostcall.Contract.
func (d *SessionRemoveResourceDriver) ToTask(ctx hostcall.HostcallContext, input abi.SessionResource) hostcall.Task[abi.GuestUint] {
	return func() (abi.GuestUint, *kernelerr.GuestError) {
		parent, _, gerr := lookupSession(ctx, registry.SlotId(input.SessionID))
		if gerr != nil {
			return 0, gerr
		}
		target, targetResID, gerr := lookupSession(ctx, registry.SlotId(input.TargetID))
		if gerr != nil {
			return 0, gerr
		}
		if !parent.Authorise(session.SessionLifecycle, targetResID) {
			return 0, kernelerr.NewPermissionDeniedError("not authorised over target session", nil)
		}
		removed, err := d.Lifecycle.RmResource(target, input.Capability, registry.ResourceId(input.ResourceID))
		if err != nil {
			return 0, asGuestError(err)
		}
		audit.Emit(audit.Event{Type: audit.EventSessionRemoveResource, Outcome: audit.OutcomeSuccess,
			Target: uint64(targetResID), Detail: input.Capability.String()})
		if removed {
			return 1, nil
		}
		return 0, nil
	}
}
