package engine

import (
	"context"
	"fmt"

	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/modulerepo"
	"github.com/stacklok/vkernel/pkg/session"
)

// guestAllocExport is the export a guest module offers when it wants to
// receive buffer arguments: the same alloc/free convention extism's guest
// SDKs use, so a module already built against that ABI needs no changes to
// run under vkernel.
const guestAllocExport = "alloc"

// SandboxProcess implements services.ProcessLifecycleCapability by running
// guest modules as wazero instances. It is the glue kernel.Config.Process
// is built from in a real deployment: module bytes come from a
// modulerepo.ReadCapability, execution from an Engine.
type SandboxProcess struct {
	engine  *Engine
	modules modulerepo.ReadCapability
}

// NewSandboxProcess constructs a SandboxProcess over eng and repo.
func NewSandboxProcess(eng *Engine, repo modulerepo.ReadCapability) *SandboxProcess {
	return &SandboxProcess{engine: eng, modules: repo}
}

// NewUnboundSandboxProcess constructs a SandboxProcess with no engine yet,
// for the one place that needs it: building a Kernel requires a
// ProcessLifecycleCapability up front, but a sandbox Engine is itself built
// from a Kernel's catalogue, so the Engine cannot exist before the Kernel
// does. A caller in that position passes the returned value as
// kernel.Config.Process, builds the Engine from the resulting Kernel, then
// calls BindEngine before accepting any guest module.
func NewUnboundSandboxProcess(repo modulerepo.ReadCapability) *SandboxProcess {
	return &SandboxProcess{modules: repo}
}

// BindEngine completes construction of a SandboxProcess built with
// NewUnboundSandboxProcess. Start and Stop fail until this has been called.
func (p *SandboxProcess) BindEngine(eng *Engine) {
	p.engine = eng
}

// Start implements services.ProcessLifecycleCapability. It resolves
// moduleID's bytes, instantiates them against the sandbox engine, and
// invokes the named entrypoint with invocation's arguments lowered to wasm
// call parameters. capabilities and name are carried for parity with the
// policy interface but are not yet consulted here; capability enforcement
// happens at the hostcall layer before Start is ever called.
func (p *SandboxProcess) Start(moduleID, _ string, _ []session.Capability, invocation abi.EntrypointInvocation) (any, error) {
	if p.engine == nil {
		return nil, fmt.Errorf("sandbox process: BindEngine was never called")
	}
	ctx := context.Background()

	moduleBytes, err := p.modules.Read(moduleID)
	if err != nil {
		return nil, fmt.Errorf("sandbox process: reading module %q: %w", moduleID, err)
	}

	inst, err := p.engine.Instantiate(ctx, moduleBytes)
	if err != nil {
		return nil, fmt.Errorf("sandbox process: instantiating module %q: %w", moduleID, err)
	}

	params, err := lowerArgs(ctx, inst, invocation)
	if err != nil {
		_ = inst.Close(ctx)
		return nil, fmt.Errorf("sandbox process: preparing entrypoint arguments: %w", err)
	}

	entrypoint := inst.Module.ExportedFunction(invocation.Entrypoint)
	if entrypoint == nil {
		_ = inst.Close(ctx)
		return nil, fmt.Errorf("sandbox process: module %q has no export %q", moduleID, invocation.Entrypoint)
	}

	if _, err := entrypoint.Call(ctx, params...); err != nil {
		_ = inst.Close(ctx)
		return nil, fmt.Errorf("sandbox process: calling %q: %w", invocation.Entrypoint, err)
	}

	return inst, nil
}

// Stop implements services.ProcessLifecycleCapability by closing the wazero
// instance Start returned.
func (p *SandboxProcess) Stop(process any) error {
	inst, ok := process.(*Instance)
	if !ok {
		return fmt.Errorf("sandbox process: stop called with a handle Start never returned")
	}
	return inst.Close(context.Background())
}

// lowerArgs converts invocation's already-resolved arguments into the wasm
// call parameters inst's entrypoint expects: scalars pass through as their
// bit pattern, buffers are copied into the guest's own memory via its
// exported alloc function and passed as a (ptr, len) pair.
func lowerArgs(ctx context.Context, inst *Instance, invocation abi.EntrypointInvocation) ([]uint64, error) {
	params := make([]uint64, 0, len(invocation.Args)*2)
	for i, arg := range invocation.Args {
		switch {
		case arg.Scalar != nil:
			params = append(params, lowerScalar(*arg.Scalar))
		case arg.ResourceID != nil:
			params = append(params, uint64(*arg.ResourceID))
		case arg.Buffer != nil:
			ptr, err := writeGuestBuffer(ctx, inst, arg.Buffer)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			params = append(params, uint64(ptr), uint64(len(arg.Buffer)))
		default:
			return nil, fmt.Errorf("argument %d: neither scalar, resource, nor buffer", i)
		}
	}
	return params, nil
}

func lowerScalar(v abi.AbiScalarValue) uint64 {
	switch v.Kind {
	case abi.ScalarI32:
		return uint64(uint32(v.I32))
	case abi.ScalarI64:
		return uint64(v.I64)
	default:
		return v.U64
	}
}

// writeGuestBuffer copies data into memory the guest itself allocated,
// through its exported alloc(len) -> ptr function. A guest entrypoint that
// takes buffer arguments must export it.
func writeGuestBuffer(ctx context.Context, inst *Instance, data []byte) (uint32, error) {
	alloc := inst.Module.ExportedFunction(guestAllocExport)
	if alloc == nil {
		return 0, fmt.Errorf("module has no %q export to receive buffer arguments", guestAllocExport)
	}
	results, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("calling %q: %w", guestAllocExport, err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("%q returned %d results, want 1", guestAllocExport, len(results))
	}
	ptr := uint32(results[0])
	if !inst.Module.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("writing %d bytes at guest offset %d out of bounds", len(data), ptr)
	}
	return ptr, nil
}
