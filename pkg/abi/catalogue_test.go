package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stacklok/vkernel/pkg/session"
)

func TestCatalogueNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, meta := range ALL {
		assert.False(t, seen[meta.Name], "duplicate hostcall name %q", meta.Name)
		seen[meta.Name] = true
	}
	assert.Len(t, seen, len(ALL))
}

func TestByCapabilityGroupsSessionLifecycle(t *testing.T) {
	grouped := ByCapability()
	assert.Len(t, grouped[session.SessionLifecycle], 6)
	assert.Len(t, grouped[session.SharedMemory], 6)
	assert.Len(t, grouped[session.SingletonRegistry], 1)
	assert.Len(t, grouped[session.SingletonLookup], 1)
}

func TestDescriptorAccessors(t *testing.T) {
	assert.Equal(t, "vkernel::session::create", SessionCreateCall.Name())
	assert.Equal(t, session.SessionLifecycle, SessionCreateCall.Capability())
}
