package session

import (
	"sync"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
)

// Session is a capability-gated principal: a 32-byte public key and the set
// of resources each held Capability entitles it to touch. Sessions form a
// tree — every Session but the root is created by a parent that already
// holds SessionLifecycle over it — but a Session itself holds no reference
// to its parent; authorisation is checked against the parent explicitly by
// whichever hostcall driver is mediating a mutation.
type Session struct {
	mu           sync.RWMutex
	pubkey       [32]byte
	entitlements map[Capability]map[registry.ResourceId]struct{}
}

// Bootstrap constructs a Session directly, without going through
// session::create, for seeding the kernel's root session at startup. The
// root session is conventionally granted SessionLifecycle over itself so it
// can create and entitle children.
func Bootstrap(grants []Capability, pubkey [32]byte) *Session {
	s := &Session{
		pubkey:       pubkey,
		entitlements: make(map[Capability]map[registry.ResourceId]struct{}, len(grants)),
	}
	for _, c := range grants {
		s.entitlements[c] = make(map[registry.ResourceId]struct{})
	}
	return s
}

// Create constructs a fresh child Session with no entitlements. It does not
// itself check authorisation; session::create's driver confirms the parent
// holds the SessionLifecycle entitlement before calling Create.
func (*Session) Create(pubkey [32]byte) *Session {
	return &Session{
		pubkey:       pubkey,
		entitlements: make(map[Capability]map[registry.ResourceId]struct{}),
	}
}

// Pubkey returns the session's 32-byte public key.
func (s *Session) Pubkey() [32]byte {
	return s.pubkey
}

// Authorise reports whether s holds cap over target. target is itself a
// ResourceId: sessions address each other as entries in the resource
// registry, so "s holds SessionLifecycle over target" means target's
// ResourceId is present in s.entitlements[SessionLifecycle].
func (s *Session) Authorise(cap Capability, target registry.ResourceId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.entitlements[cap]
	if !ok {
		return false
	}
	_, ok = set[target]
	return ok
}

// AddEntitlement grants s the capability cap with an empty resource set,
// if it does not already hold it. Adding an entitlement the session already
// holds is a no-op, not an error.
func (s *Session) AddEntitlement(cap Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entitlements[cap]; !ok {
		s.entitlements[cap] = make(map[registry.ResourceId]struct{})
	}
}

// RmEntitlement revokes cap from s entirely, including every resource it
// had been granted under that capability.
func (s *Session) RmEntitlement(cap Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entitlements, cap)
}

// HasEntitlement reports whether s holds cap at all, regardless of which
// resources are granted under it.
func (s *Session) HasEntitlement(cap Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entitlements[cap]
	return ok
}

// AddResource grants resource under cap, reporting true if the grant is new
// and false if the session already held it under cap. It returns
// ErrKernelRegistry-flavoured failure only through the kernel error: here it
// returns a RegistryError when cap is not held by s at all, since there is
// no set to add to.
func (s *Session) AddResource(cap Capability, resource registry.ResourceId) (bool, *kernelerr.RegistryError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.entitlements[cap]
	if !ok {
		return false, kernelerr.ErrRegistryNotFound()
	}
	if _, already := set[resource]; already {
		return false, nil
	}
	set[resource] = struct{}{}
	return true, nil
}

// RmResource revokes resource from cap, reporting true if it had been
// granted and false if it was already absent.
func (s *Session) RmResource(cap Capability, resource registry.ResourceId) (bool, *kernelerr.RegistryError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.entitlements[cap]
	if !ok {
		return false, kernelerr.ErrRegistryNotFound()
	}
	if _, present := set[resource]; !present {
		return false, nil
	}
	delete(set, resource)
	return true, nil
}
