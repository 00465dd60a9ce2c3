// Package services implements the kernel-owned default capability drivers:
// the concrete policy behind each hostcall family, wired by pkg/kernel onto
// the generic create/poll/drop runtime in pkg/hostcall.
package services

import (
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
	"github.com/stacklok/vkernel/pkg/session"
)

// SessionLifecycle is the pluggable policy behind session::create,
// add_entitlement, rm_entitlement, add_resource, rm_resource and remove.
// The session hostcall drivers depend on this interface rather than calling
// *session.Session directly, so a host embedding the kernel can audit,
// rate-limit or otherwise wrap session mutation without touching the
// hostcall drivers themselves.
type SessionLifecycle interface {
	Create(parent *session.Session, pubkey [32]byte) (*session.Session, error)
	AddEntitlement(target *session.Session, cap session.Capability) error
	RmEntitlement(target *session.Session, cap session.Capability) error
	AddResource(target *session.Session, cap session.Capability, resource registry.ResourceId) (bool, error)
	RmResource(target *session.Session, cap session.Capability, resource registry.ResourceId) (bool, error)
	Remove(target *session.Session) error
}

// DefaultSessionLifecycle implements SessionLifecycle directly in terms of
// *session.Session's own methods, with no additional policy.
type DefaultSessionLifecycle struct{}

// Create constructs parent's child session.
func (DefaultSessionLifecycle) Create(parent *session.Session, pubkey [32]byte) (*session.Session, error) {
	return parent.Create(pubkey), nil
}

// AddEntitlement grants target the given capability.
func (DefaultSessionLifecycle) AddEntitlement(target *session.Session, cap session.Capability) error {
	target.AddEntitlement(cap)
	return nil
}

// RmEntitlement revokes the given capability from target.
func (DefaultSessionLifecycle) RmEntitlement(target *session.Session, cap session.Capability) error {
	target.RmEntitlement(cap)
	return nil
}

// AddResource grants resource to target under cap.
func (DefaultSessionLifecycle) AddResource(target *session.Session, cap session.Capability, resource registry.ResourceId) (bool, error) {
	added, regErr := target.AddResource(cap, resource)
	if regErr != nil {
		return false, regErr
	}
	return added, nil
}

// RmResource revokes resource from target under cap.
func (DefaultSessionLifecycle) RmResource(target *session.Session, cap session.Capability, resource registry.ResourceId) (bool, error) {
	removed, regErr := target.RmResource(cap, resource)
	if regErr != nil {
		return false, regErr
	}
	return removed, nil
}

// Remove has nothing to do beyond what the driver already does (freeing
// the slot and the registry entry); it exists so a host can hook session
// teardown for auditing.
func (DefaultSessionLifecycle) Remove(*session.Session) error {
	return nil
}

// asGuestError normalises any error a SessionLifecycle implementation
// returns into the GuestError taxonomy a hostcall driver must produce.
func asGuestError(err error) *kernelerr.GuestError {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *kernelerr.GuestError:
		return e
	case *kernelerr.KernelError:
		return e.AsGuestError()
	case *kernelerr.RegistryError:
		return kernelerr.NewRegistryGuestError(e)
	default:
		return kernelerr.NewSubsystemError("session lifecycle", err)
	}
}
