package engine

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/registry"
)

// wireError is the minimal payload written into a guest's output buffer
// when a hostcall fails with a GuestError: only the type and message cross
// the ABI boundary, never the host-internal cause chain.
type wireError struct {
	Type    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}

func (wireError) Validate() error { return nil }

// validated decodes bytes into I via abi.Decode, running I's bytecheck
// pass. Used for every catalogued input type except abi.GuestResourceId,
// which has no Validate method to run (see raw).
func validated[I abi.Validatable](data []byte) (I, *kernelerr.GuestError) {
	v, err := abi.Decode[I](data)
	return v, toGuestError(err, "malformed hostcall payload")
}

// raw decodes bytes into I via abi.DecodeResult, without a validation
// pass. Used only for process::stop's abi.GuestResourceId input: a plain
// uint64 alias has no shape to validate beyond what the registry lookup it
// feeds already rejects.
func raw[I any](data []byte) (I, *kernelerr.GuestError) {
	v, err := abi.DecodeResult[I](data)
	return v, toGuestError(err, "malformed hostcall payload")
}

func toGuestError(err error, fallback string) *kernelerr.GuestError {
	if err == nil {
		return nil
	}
	var ge *kernelerr.GuestError
	if errors.As(err, &ge) {
		return ge
	}
	return kernelerr.NewInvalidArgumentError(fallback, err)
}

// wire links op's create/poll/drop hooks as a host module named after
// op.Module(), decoding create's input bytes with decode.
func wire[I, O any](ctx context.Context, rt wazero.Runtime, eng *Engine, op *hostcall.Operation[I, O], decode func([]byte) (I, *kernelerr.GuestError)) error {
	_, err := rt.NewHostModuleBuilder(op.Module()).
		NewFunctionBuilder().WithFunc(createFunc(eng, op, decode)).Export("create").
		NewFunctionBuilder().WithFunc(pollFunc(eng, op)).Export("poll").
		NewFunctionBuilder().WithFunc(dropFunc(eng, op)).Export("drop").
		Instantiate(ctx)
	if err != nil {
		return kernelerr.NewEngineError("failed to link host module "+op.Module(), err)
	}
	return nil
}

func createFunc[I, O any](eng *Engine, op *hostcall.Operation[I, O], decode func([]byte) (I, *kernelerr.GuestError)) func(context.Context, api.Module, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, argsPtr, argsLen uint32) uint32 {
		st := eng.stateFor(mod)
		if st == nil {
			return statusOf(kernelerr.ErrKernel)
		}

		data, ok := mod.Memory().Read(argsPtr, argsLen)
		if !ok {
			return statusOf(kernelerr.ErrMemorySlice)
		}

		input, gerr := decode(data)
		if gerr != nil {
			return statusOf(gerr.Type)
		}

		slot, kerr := op.Create(&engineContext{state: st}, input)
		if kerr != nil {
			return statusOf(kernelerr.ErrKernel)
		}
		return uint32(abi.EncodeReady(uint32(slot)))
	}
}

func pollFunc[I, O any](eng *Engine, op *hostcall.Operation[I, O]) func(context.Context, api.Module, uint32, uint32, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, state, task, outPtr, outCap uint32) uint32 {
		st := eng.stateFor(mod)
		if st == nil {
			return statusOf(kernelerr.ErrKernel)
		}

		result, kerr := op.Poll(&engineContext{state: st}, registry.SlotId(state), uint64(task))
		if kerr != nil {
			return statusOf(kernelerr.ErrKernel)
		}
		if result == nil {
			return uint32(abi.EncodePending())
		}
		if result.Err != nil {
			return writeGuestError(mod, outPtr, outCap, result.Err)
		}
		return writeReady(mod, outPtr, outCap, result.Value)
	}
}

func dropFunc[I, O any](eng *Engine, op *hostcall.Operation[I, O]) func(context.Context, api.Module, uint32, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, state, outPtr, outCap uint32) uint32 {
		st := eng.stateFor(mod)
		if st == nil {
			return statusOf(kernelerr.ErrKernel)
		}

		if kerr := op.Drop(&engineContext{state: st}, registry.SlotId(state)); kerr != nil {
			return writeGuestError(mod, outPtr, outCap, kernelerr.NewSubsystemError(kerr.Error(), kerr))
		}
		return uint32(abi.EncodeReady(0))
	}
}

func writeReady(mod api.Module, outPtr, outCap uint32, data []byte) uint32 {
	if uint32(len(data)) > outCap {
		return statusOf(kernelerr.ErrMemorySlice)
	}
	if len(data) > 0 && !mod.Memory().Write(outPtr, data) {
		return statusOf(kernelerr.ErrMemorySlice)
	}
	return uint32(abi.EncodeReady(uint32(len(data))))
}

func writeGuestError(mod api.Module, outPtr, outCap uint32, gerr *kernelerr.GuestError) uint32 {
	encoded, err := abi.Encode(wireError{Type: string(gerr.Type), Message: gerr.Error()})
	if err != nil {
		return statusOf(kernelerr.ErrSubsystem)
	}
	if uint32(len(encoded)) > outCap || !mod.Memory().Write(outPtr, encoded) {
		return statusOf(gerr.Type)
	}
	return uint32(abi.EncodeErrorWithMessage())
}

// linkCatalogue links every hostcall in the kernel's operation set as its
// own host module, named after its wasm import symbol.
func (e *Engine) linkCatalogue(ctx context.Context) error {
	k := e.kernel
	links := []func() error{
		func() error { return wire[abi.SessionCreate, abi.GuestUint](ctx, e.runtime, e, k.SessionCreate, validated[abi.SessionCreate]) },
		func() error { return wire[abi.SessionRemove, abi.Empty](ctx, e.runtime, e, k.SessionRemove, validated[abi.SessionRemove]) },
		func() error {
			return wire[abi.SessionEntitlement, abi.Empty](ctx, e.runtime, e, k.SessionAddEntitlement, validated[abi.SessionEntitlement])
		},
		func() error {
			return wire[abi.SessionEntitlement, abi.Empty](ctx, e.runtime, e, k.SessionRemoveEntitlement, validated[abi.SessionEntitlement])
		},
		func() error {
			return wire[abi.SessionResource, abi.GuestUint](ctx, e.runtime, e, k.SessionAddResource, validated[abi.SessionResource])
		},
		func() error {
			return wire[abi.SessionResource, abi.GuestUint](ctx, e.runtime, e, k.SessionRemoveResource, validated[abi.SessionResource])
		},
		func() error {
			return wire[abi.SingletonRegister, abi.Empty](ctx, e.runtime, e, k.SingletonRegister, validated[abi.SingletonRegister])
		},
		func() error {
			return wire[abi.SingletonLookup, abi.GuestResourceId](ctx, e.runtime, e, k.SingletonLookup, validated[abi.SingletonLookup])
		},
		func() error { return wire[abi.Empty, abi.TimeNow](ctx, e.runtime, e, k.TimeNow, validated[abi.Empty]) },
		func() error { return wire[abi.TimeSleep, abi.Empty](ctx, e.runtime, e, k.TimeSleep, validated[abi.TimeSleep]) },
		func() error {
			return wire[abi.ProcessStart, abi.GuestResourceId](ctx, e.runtime, e, k.ProcessStart, validated[abi.ProcessStart])
		},
		func() error { return wire[abi.GuestResourceId, abi.Empty](ctx, e.runtime, e, k.ProcessStop, raw[abi.GuestResourceId]) },
		func() error { return wire[abi.ShmAlloc, abi.ShmDescriptor](ctx, e.runtime, e, k.ShmAlloc, validated[abi.ShmAlloc]) },
		func() error { return wire[abi.ShmShare, abi.GuestResourceId](ctx, e.runtime, e, k.ShmShare, validated[abi.ShmShare]) },
		func() error { return wire[abi.ShmAttach, abi.ShmDescriptor](ctx, e.runtime, e, k.ShmAttach, validated[abi.ShmAttach]) },
		func() error { return wire[abi.ShmDetach, abi.Empty](ctx, e.runtime, e, k.ShmDetach, validated[abi.ShmDetach]) },
		func() error { return wire[abi.ShmRead, []byte](ctx, e.runtime, e, k.ShmRead, validated[abi.ShmRead]) },
		func() error { return wire[abi.ShmWrite, abi.Empty](ctx, e.runtime, e, k.ShmWrite, validated[abi.ShmWrite]) },
	}
	for _, link := range links {
		if err := link(); err != nil {
			return err
		}
	}
	return nil
}

// linkYieldNow links the guest's cooperative suspension point: a guest
// fiber calls this to park until its mailbox signals, without busy-polling
// a pending future.
func (e *Engine) linkYieldNow(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder("core::async").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, mod api.Module) {
			st := e.stateFor(mod)
			if st == nil {
				return
			}
			st.mailbox.WaitForSignal(ctx)
		}).Export("yield_now").
		Instantiate(ctx)
	if err != nil {
		return kernelerr.NewEngineError("failed to link core::async", err)
	}
	return nil
}
