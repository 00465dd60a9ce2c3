package services

import "github.com/stacklok/vkernel/pkg/registry"

type fakeContext struct {
	reg *registry.InstanceRegistry
}

func newFakeContext() *fakeContext {
	return &fakeContext{reg: registry.NewInstanceRegistry(registry.NewRegistry())}
}

func (c *fakeContext) Registry() *registry.InstanceRegistry { return c.reg }
func (c *fakeContext) MailboxBase() (uintptr, bool)         { return 0, false }
