package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
	"github.com/stacklok/vkernel/pkg/session"
)

func insertParentSession(ctx *fakeContext) registry.SlotId {
	parent := session.Bootstrap(nil, [32]byte{})
	parent.AddEntitlement(session.SessionLifecycle)
	resourceID := ctx.Registry().Registry().Insert(registry.ResourceSession, parent)
	return ctx.Registry().Allocate(registry.ResourceSession, resourceID)
}

func insertBareSession(ctx *fakeContext, pubkey [32]byte) registry.SlotId {
	s := session.Bootstrap(nil, pubkey)
	resourceID := ctx.Registry().Registry().Insert(registry.ResourceSession, s)
	return ctx.Registry().Allocate(registry.ResourceSession, resourceID)
}

func TestSessionCreateGrantsLifecycleOverChild(t *testing.T) {
	ctx := newFakeContext()
	parentSlot := insertParentSession(ctx)
	driver := NewSessionCreateDriver(DefaultSessionLifecycle{})

	childSlot, gerr := driver.ToTask(ctx, abi.SessionCreate{SessionID: abi.GuestUint(parentSlot), Pubkey: [32]byte{1}})()
	require.Nil(t, gerr)

	parent, _, gerr := lookupSession(ctx, parentSlot)
	require.Nil(t, gerr)
	_, childResID, gerr := lookupSession(ctx, registry.SlotId(childSlot))
	require.Nil(t, gerr)
	assert.True(t, parent.Authorise(session.SessionLifecycle, childResID))
}

func TestSessionAddEntitlementRequiresAuthorisation(t *testing.T) {
	ctx := newFakeContext()
	parentSlot := insertBareSession(ctx, [32]byte{0})
	targetSlot := insertBareSession(ctx, [32]byte{1})
	driver := NewSessionAddEntitlementDriver(DefaultSessionLifecycle{})

	_, gerr := driver.ToTask(ctx, abi.SessionEntitlement{
		SessionID:  abi.GuestUint(parentSlot),
		TargetID:   abi.GuestUint(targetSlot),
		Capability: session.TimeRead,
	})()
	require.NotNil(t, gerr)
	assert.True(t, kernelerr.IsPermissionDenied(gerr))
}

func TestAddAndRemoveResourceReportChangeFlags(t *testing.T) {
	ctx := newFakeContext()
	parentSlot := insertParentSession(ctx)
	targetSlot := insertBareSession(ctx, [32]byte{2})

	parent, _, gerr := lookupSession(ctx, parentSlot)
	require.Nil(t, gerr)
	_, targetResID, gerr := lookupSession(ctx, targetSlot)
	require.Nil(t, gerr)
	granted, regErr := parent.AddResource(session.SessionLifecycle, targetResID)
	require.Nil(t, regErr)
	require.True(t, granted)

	resourceID := ctx.Registry().Registry().Insert(registry.ResourceOther, uint32(5))

	addEntitlement := NewSessionAddEntitlementDriver(DefaultSessionLifecycle{})
	_, gerr = addEntitlement.ToTask(ctx, abi.SessionEntitlement{
		SessionID:  abi.GuestUint(parentSlot),
		TargetID:   abi.GuestUint(targetSlot),
		Capability: session.TimeRead,
	})()
	require.Nil(t, gerr)

	addResource := NewSessionAddResourceDriver(DefaultSessionLifecycle{})
	added, gerr := addResource.ToTask(ctx, abi.SessionResource{
		SessionID:  abi.GuestUint(parentSlot),
		TargetID:   abi.GuestUint(targetSlot),
		Capability: session.TimeRead,
		ResourceID: abi.GuestResourceId(resourceID),
	})()
	require.Nil(t, gerr)
	assert.Equal(t, abi.GuestUint(1), added)

	addedAgain, gerr := addResource.ToTask(ctx, abi.SessionResource{
		SessionID:  abi.GuestUint(parentSlot),
		TargetID:   abi.GuestUint(targetSlot),
		Capability: session.TimeRead,
		ResourceID: abi.GuestResourceId(resourceID),
	})()
	require.Nil(t, gerr)
	assert.Equal(t, abi.GuestUint(0), addedAgain)

	rmResource := NewSessionRemoveResourceDriver(DefaultSessionLifecycle{})
	removed, gerr := rmResource.ToTask(ctx, abi.SessionResource{
		SessionID:  abi.GuestUint(parentSlot),
		TargetID:   abi.GuestUint(targetSlot),
		Capability: session.TimeRead,
		ResourceID: abi.GuestResourceId(resourceID),
	})()
	require.Nil(t, gerr)
	assert.Equal(t, abi.GuestUint(1), removed)
}

func TestSessionRemoveRevokesParentGrant(t *testing.T) {
	ctx := newFakeContext()
	parentSlot := insertParentSession(ctx)
	driver := NewSessionCreateDriver(DefaultSessionLifecycle{})

	childSlot, gerr := driver.ToTask(ctx, abi.SessionCreate{SessionID: abi.GuestUint(parentSlot), Pubkey: [32]byte{3}})()
	require.Nil(t, gerr)

	parent, _, gerr := lookupSession(ctx, parentSlot)
	require.Nil(t, gerr)
	_, childResID, gerr := lookupSession(ctx, registry.SlotId(childSlot))
	require.Nil(t, gerr)

	remove := NewSessionRemoveDriver(DefaultSessionLifecycle{})
	_, gerr = remove.ToTask(ctx, abi.SessionRemove{
		SessionID: abi.GuestUint(parentSlot),
		TargetID:  childSlot,
	})()
	require.Nil(t, gerr)

	_, _, gerr = lookupSession(ctx, registry.SlotId(childSlot))
	require.NotNil(t, gerr)
	assert.False(t, parent.Authorise(session.SessionLifecycle, childResID))
}
