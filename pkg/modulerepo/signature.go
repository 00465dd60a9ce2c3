package modulerepo

import (
	"fmt"

	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"

	"github.com/stacklok/vkernel/pkg/abi"
	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// exportFunctionType parses module bytes and returns the wasm function type
// declared for the exported function named entrypoint.
func exportFunctionType(module []byte, entrypoint string) (*wasm.FunctionType, error) {
	mod, err := binary.DecodeModule(module, wasm.Features20191205, wasm.MemoryLimitPages, false, false, false)
	if err != nil {
		return nil, kernelerr.NewDriverError(fmt.Sprintf("modulerepo: decoding module: %s", err))
	}

	var funcIdx uint32
	found := false
	for _, exp := range mod.ExportSection {
		if exp.Name == entrypoint && exp.Type == wasm.ExternTypeFunc {
			funcIdx = exp.Index
			found = true
			break
		}
	}
	if !found {
		return nil, kernelerr.NewDriverError(fmt.Sprintf("modulerepo: module has no exported function %q", entrypoint))
	}

	importedFuncs := uint32(0)
	for _, imp := range mod.ImportSection {
		if imp.Type == wasm.ExternTypeFunc {
			importedFuncs++
		}
	}
	if funcIdx < importedFuncs {
		return nil, kernelerr.NewDriverError(fmt.Sprintf("modulerepo: entrypoint %q resolves to an imported function", entrypoint))
	}

	localIdx := funcIdx - importedFuncs
	if int(localIdx) >= len(mod.FunctionSection) {
		return nil, kernelerr.NewDriverError(fmt.Sprintf("modulerepo: entrypoint %q has no function body", entrypoint))
	}

	typeIdx := mod.FunctionSection[localIdx]
	if int(typeIdx) >= len(mod.TypeSection) {
		return nil, kernelerr.NewDriverError(fmt.Sprintf("modulerepo: entrypoint %q declares an out-of-range type index", entrypoint))
	}
	return &mod.TypeSection[typeIdx], nil
}

// wasmParamsFor returns the wasm value types an EntrypointSignature's
// declared params lower to on the wire: a scalar param contributes one
// value (i32 for ScalarI32, i64 for ScalarI64/ScalarU64), a buffer param
// contributes two i32 values (a pointer and a length), matching the
// pointer/length pairs every other hostcall in the catalogue uses.
func wasmParamsFor(sig abi.EntrypointSignature) []wasm.ValueType {
	params := make([]wasm.ValueType, 0, len(sig.Params)*2)
	for _, p := range sig.Params {
		if p.IsBuffer {
			params = append(params, wasm.ValueTypeI32, wasm.ValueTypeI32)
			continue
		}
		switch p.Scalar {
		case abi.ScalarI32:
			params = append(params, wasm.ValueTypeI32)
		case abi.ScalarI64, abi.ScalarU64:
			params = append(params, wasm.ValueTypeI64)
		}
	}
	return params
}

// ValidateEntrypoint checks that moduleBytes declares an exported function
// named invocation.Entrypoint whose wasm parameter types match the lowered
// form of invocation.Signature, per the module repository's supplemental
// entrypoint signature validation.
func ValidateEntrypoint(moduleBytes []byte, invocation abi.EntrypointInvocation) error {
	ft, err := exportFunctionType(moduleBytes, invocation.Entrypoint)
	if err != nil {
		return err
	}

	want := wasmParamsFor(invocation.Signature)
	if len(want) != len(ft.Params) {
		return kernelerr.NewDriverError(fmt.Sprintf(
			"modulerepo: entrypoint %q expects %d wasm params, invocation declares %d",
			invocation.Entrypoint, len(ft.Params), len(want)))
	}
	for i, v := range want {
		if ft.Params[i] != v {
			return kernelerr.NewDriverError(fmt.Sprintf(
				"modulerepo: entrypoint %q param %d type mismatch", invocation.Entrypoint, i))
		}
	}
	return nil
}
