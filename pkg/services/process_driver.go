package services

import (
	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/audit"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/modulerepo"
	"github.com/stacklok/vkernel/pkg/registry"
)

// resolveEntrypointArgs rewrites a guest-supplied invocation's resource
// arguments into a form a process runner can act on without touching the
// calling instance's slot table again: I32-typed resource arguments name a
// SlotId in the caller's instance and are rewritten to the process-wide
// ResourceId they point at, while U64-typed resource arguments already
// name a SharedId and are only checked, not rewritten.
func resolveEntrypointArgs(ctx hostcall.HostcallContext, invocation abi.EntrypointInvocation) (abi.EntrypointInvocation, *kernelerr.GuestError) {
	params := invocation.Signature.Params
	if len(params) != len(invocation.Args) {
		return abi.EntrypointInvocation{}, kernelerr.NewInvalidArgumentError("entrypoint arity mismatch", nil)
	}

	resolved := make([]abi.EntrypointArg, len(invocation.Args))
	for i, arg := range invocation.Args {
		param := params[i]
		switch {
		case !param.IsBuffer && arg.ResourceID != nil && param.Scalar == abi.ScalarI32:
			slot := registry.SlotId(*arg.ResourceID)
			resourceID, _, gerr := lookupResource(ctx, slot)
			if gerr != nil {
				return abi.EntrypointInvocation{}, gerr
			}
			rewritten := abi.GuestResourceId(resourceID)
			resolved[i] = abi.EntrypointArg{ResourceID: &rewritten}
		case !param.IsBuffer && arg.ResourceID != nil && param.Scalar == abi.ScalarU64:
			if _, regErr := ctx.Registry().Registry().Resolve(registry.SharedId(*arg.ResourceID)); regErr != nil {
				return abi.EntrypointInvocation{}, kernelerr.NewNotFoundError("entrypoint argument references unknown shared resource", regErr)
			}
			resolved[i] = arg
		case !param.IsBuffer && arg.Scalar != nil:
			resolved[i] = arg
		case param.IsBuffer && arg.Buffer != nil:
			resolved[i] = arg
		default:
			return abi.EntrypointInvocation{}, kernelerr.NewInvalidArgumentError("entrypoint argument incompatible with signature", nil)
		}
	}

	return abi.EntrypointInvocation{
		Entrypoint: invocation.Entrypoint,
		Signature:  invocation.Signature,
		Args:       resolved,
	}, nil
}

// lookupResource resolves a SlotId to the ResourceId and kind it names,
// independent of what kind of resource it is.
func lookupResource(ctx hostcall.HostcallContext, slot registry.SlotId) (registry.ResourceId, registry.ResourceType, *kernelerr.GuestError) {
	res, kind, regErr := ctx.Registry().Lookup(slot)
	if regErr != nil {
		return 0, 0, kernelerr.NewNotFoundError("unknown resource handle", regErr)
	}
	return res, kind, nil
}

// ProcessStartDriver implements process::start.
type ProcessStartDriver struct {
	Capability ProcessLifecycleCapability
	Modules    modulerepo.ReadCapability
	Validate   func(moduleBytes []byte, invocation abi.EntrypointInvocation) error
}

// NewProcessStartDriver constructs a driver over the given policy, resolving
// module bytes through repo to validate the entrypoint invocation's
// signature before the engine ever sees it.
func NewProcessStartDriver(cap ProcessLifecycleCapability, repo modulerepo.ReadCapability) *ProcessStartDriver {
	return &ProcessStartDriver{Capability: cap, Modules: repo, Validate: modulerepo.ValidateEntrypoint}
}

// ToTask implements hostcall.Contract.
func (d *ProcessStartDriver) ToTask(ctx hostcall.HostcallContext, input abi.ProcessStart) hostcall.Task[abi.GuestResourceId] {
	return func() (abi.GuestResourceId, *kernelerr.GuestError) {
		moduleBytes, err := d.Modules.Read(input.ModuleID)
		if err != nil {
			return 0, kernelerr.NewNotFoundError("module repository could not resolve module id", err)
		}
		if err := d.Validate(moduleBytes, input.Invocation); err != nil {
			return 0, kernelerr.NewInvalidArgumentError("entrypoint invocation does not match module signature", err)
		}

		invocation, gerr := resolveEntrypointArgs(ctx, input.Invocation)
		if gerr != nil {
			return 0, gerr
		}

		process, err := d.Capability.Start(input.ModuleID, input.Name, input.Capabilities, invocation)
		if err != nil {
			return 0, asGuestError(err)
		}

		resourceID := ctx.Registry().Registry().Insert(registry.ResourceProcess, process)
		audit.Emit(audit.Event{Type: audit.EventProcessStart, Outcome: audit.OutcomeSuccess,
			Target: uint64(resourceID), Detail: input.Name})
		return abi.GuestResourceId(resourceID), nil
	}
}

// ProcessStopDriver implements process::stop.
type ProcessStopDriver struct{ Capability ProcessLifecycleCapability }

// NewProcessStopDriver constructs a driver over the given policy.
func NewProcessStopDriver(cap ProcessLifecycleCapability) *ProcessStopDriver {
	return &ProcessStopDriver{Capability: cap}
}

// ToTask implements hostcall.Contract.
func (d *ProcessStopDriver) ToTask(ctx hostcall.HostcallContext, input abi.GuestResourceId) hostcall.Task[abi.Empty] {
	return func() (abi.Empty, *kernelerr.GuestError) {
		reg := ctx.Registry().Registry()
		resourceID := registry.ResourceId(input)
		kind, ok := reg.Kind(resourceID)
		if !ok {
			return abi.Empty{}, kernelerr.NewNotFoundError("unknown process handle", nil)
		}
		if kind != registry.ResourceProcess {
			return abi.Empty{}, kernelerr.NewInvalidArgumentError("handle does not name a process", nil)
		}

		handle, regErr := registry.Lookup[any](reg, resourceID)
		if regErr != nil {
			return abi.Empty{}, kernelerr.NewNotFoundError("process resource vanished", regErr)
		}

		if err := d.Capability.Stop(handle.Value); err != nil {
			return abi.Empty{}, asGuestError(err)
		}
		_ = reg.Remove(resourceID)
		audit.Emit(audit.Event{Type: audit.EventProcessStop, Outcome: audit.OutcomeSuccess,
			Target: uint64(resourceID)})
		return abi.Empty{}, nil
	}
}
