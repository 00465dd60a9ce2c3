// Package engine is the sandbox engine integration: a wazero-backed runtime
// that links every catalogued hostcall's create/poll/drop ABI hooks into a
// guest module's host module namespace and drives guest instances to
// completion. It is the external collaborator pkg/kernel's operations defer
// raw-byte decode and guest memory access to.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/kernel"
	"github.com/stacklok/vkernel/pkg/logger"
	"github.com/stacklok/vkernel/pkg/mailbox"
	"github.com/stacklok/vkernel/pkg/registry"
)

// Engine owns the wazero runtime and the live guest instances linked
// against it. Every catalogued hostcall is linked once, at construction
// time; per-instance state (slot table, mailbox) is looked up by the
// calling module's instantiation name on every host function invocation.
type Engine struct {
	runtime wazero.Runtime
	kernel  *kernel.Kernel

	mu        sync.Mutex
	instances map[string]*instanceState
}

// instanceState is the per-guest-instance state a host function needs:
// the slot table hostcall.Operation dispatches against, and the mailbox
// yield_now parks the guest fiber on.
type instanceState struct {
	registry *registry.InstanceRegistry
	mailbox  *mailbox.InProcess
}

// engineContext adapts one guest instance's state into the engine-neutral
// interface pkg/hostcall calls through. MailboxBase always reports false:
// wazero's Memory is accessed by offset into a Go-managed byte slice, never
// through a cached pointer the guest's linear memory growth could
// invalidate, so there is no base to refresh.
type engineContext struct {
	state *instanceState
}

func (c *engineContext) Registry() *registry.InstanceRegistry { return c.state.registry }

func (c *engineContext) MailboxBase() (uintptr, bool) { return 0, false }

// NewEngine constructs a wazero runtime and links every hostcall in k's
// catalogue, plus core::async::yield_now, into their own host modules.
func NewEngine(ctx context.Context, k *kernel.Kernel) (*Engine, error) {
	eng := &Engine{
		runtime:   wazero.NewRuntime(ctx),
		kernel:    k,
		instances: make(map[string]*instanceState),
	}

	if err := eng.linkCatalogue(ctx); err != nil {
		_ = eng.runtime.Close(ctx)
		return nil, err
	}
	if err := eng.linkYieldNow(ctx); err != nil {
		_ = eng.runtime.Close(ctx)
		return nil, err
	}

	return eng, nil
}

// Close tears down every live instance and closes the wazero runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.instances))
	for id := range e.instances {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.forget(id)
	}
	return e.runtime.Close(ctx)
}

func (e *Engine) stateFor(mod api.Module) *instanceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instances[mod.Name()]
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	st, ok := e.instances[id]
	delete(e.instances, id)
	e.mu.Unlock()
	if ok {
		st.registry.Teardown(func(res registry.ResourceId) {
			if h, regErr := registry.Lookup[*registry.FutureSharedState](st.registry.Registry(), res); regErr == nil {
				h.Value.Abandon()
			}
		})
	}
}

// Instance is a running guest module instance: its wazero module, and the
// slot table and mailbox the linked hostcalls dispatch against.
type Instance struct {
	ID     string
	Module api.Module

	engine *Engine
	state  *instanceState
}

// Instantiate compiles and instantiates a guest module's wasm bytes,
// binding a fresh InstanceRegistry and in-process mailbox to it. The
// instance is addressed internally by a fresh uuid, the way a real
// deployment labels concurrent module instantiations in logs and audit
// events.
func (e *Engine) Instantiate(ctx context.Context, binary []byte) (*Instance, error) {
	id := uuid.NewString()

	ir := e.kernel.NewInstance()
	mb := mailbox.NewInProcess()
	ir.BindMailbox(mb)
	st := &instanceState{registry: ir, mailbox: mb}

	e.mu.Lock()
	e.instances[id] = st
	e.mu.Unlock()

	compiled, err := e.runtime.CompileModule(ctx, binary)
	if err != nil {
		e.forget(id)
		return nil, kernelerr.NewEngineError("failed to compile guest module", err)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(id))
	if err != nil {
		e.forget(id)
		return nil, kernelerr.NewEngineError("failed to instantiate guest module", err)
	}

	logger.Infow("guest module instantiated", "instance_id", id)
	return &Instance{ID: id, Module: mod, engine: e, state: st}, nil
}

// Close tears the instance's slot table down, forgets its mailbox, and
// closes its wazero module.
func (i *Instance) Close(ctx context.Context) error {
	i.engine.forget(i.ID)
	return i.Module.Close(ctx)
}

// statusOf packs a GuestErrorType that carries no payload into an abi
// status word. create always returns this form: it has no output buffer
// to write a message into. poll and drop fall back to it only when the
// message itself fails to encode or doesn't fit the guest's buffer.
func statusOf(t kernelerr.GuestErrorType) uint32 {
	return uint32(abi.EncodeErrorCode(t))
}
