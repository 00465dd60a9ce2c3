package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
)

func TestSingletonRegisterAndLookupRoundTrip(t *testing.T) {
	ctx := newFakeContext()
	resourceID := ctx.Registry().Registry().Insert(registry.ResourceOther, uint32(12))
	sharedID := ctx.Registry().Registry().Share(resourceID)
	dep := registry.DependencyId{9}

	register := NewSingletonRegisterDriver(SingletonRegistryService{})
	_, gerr := register.ToTask(ctx, abi.SingletonRegister{ID: dep, Resource: abi.GuestResourceId(sharedID)})()
	require.Nil(t, gerr)

	lookup := NewSingletonLookupDriver(SingletonRegistryService{})
	shared, gerr := lookup.ToTask(ctx, abi.SingletonLookup{ID: dep})()
	require.Nil(t, gerr)

	resolved, regErr := ctx.Registry().Registry().Resolve(registry.SharedId(shared))
	require.Nil(t, regErr)
	assert.Equal(t, resourceID, resolved)
}

func TestSingletonRegisterRejectsDuplicate(t *testing.T) {
	ctx := newFakeContext()
	first := ctx.Registry().Registry().Insert(registry.ResourceOther, uint32(1))
	second := ctx.Registry().Registry().Insert(registry.ResourceOther, uint32(2))
	firstShared := ctx.Registry().Registry().Share(first)
	secondShared := ctx.Registry().Registry().Share(second)
	dep := registry.DependencyId{1}

	register := NewSingletonRegisterDriver(SingletonRegistryService{})
	_, gerr := register.ToTask(ctx, abi.SingletonRegister{ID: dep, Resource: abi.GuestResourceId(firstShared)})()
	require.Nil(t, gerr)

	_, gerr = register.ToTask(ctx, abi.SingletonRegister{ID: dep, Resource: abi.GuestResourceId(secondShared)})()
	require.NotNil(t, gerr)
	assert.True(t, kernelerr.IsStableIDExists(gerr))
}
