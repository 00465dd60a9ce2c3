package services

import (
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/registry"
)

// SingletonCapability is the pluggable policy behind singleton::register
// and singleton::lookup.
type SingletonCapability interface {
	Register(reg *registry.Registry, id registry.DependencyId, resource registry.ResourceId) error
	Lookup(reg *registry.Registry, id registry.DependencyId) (registry.ResourceId, error)
}

// SingletonRegistryService implements SingletonCapability directly against
// the process-wide Registry's singleton index: the first registration for
// a DependencyId wins, and every later registration attempt fails with
// ErrStableIDExists regardless of whether it names the same resource.
type SingletonRegistryService struct{}

// Register installs resource under id if id has no registrant yet.
func (SingletonRegistryService) Register(reg *registry.Registry, id registry.DependencyId, resource registry.ResourceId) error {
	if _, ok := reg.Kind(resource); !ok {
		return kernelerr.NewNotFoundError("singleton target resource not found", nil)
	}
	winner, first := reg.RegisterSingleton(id, resource)
	if !first || winner != resource {
		return kernelerr.NewStableIDExistsError("dependency already registered", nil)
	}
	return nil
}

// Lookup resolves id to its registered ResourceId.
func (SingletonRegistryService) Lookup(reg *registry.Registry, id registry.DependencyId) (registry.ResourceId, error) {
	resource, ok := reg.Singleton(id)
	if !ok {
		return 0, kernelerr.NewNotFoundError("dependency not registered", nil)
	}
	if _, ok := reg.Kind(resource); !ok {
		return 0, kernelerr.NewNotFoundError("singleton target resource vanished", nil)
	}
	return resource, nil
}
