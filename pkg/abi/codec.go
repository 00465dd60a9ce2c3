package abi

import (
	"github.com/fxamacker/cbor/v2"

	kernelerr "github.com/stacklok/vkernel/pkg/errors"
)

// Validatable is implemented by every payload type in this package. Decode
// runs it immediately after a successful unmarshal, standing in for the
// reference implementation's compile-time bytecheck derive: CBOR's
// decoder guarantees the bytes parse into the right shape, Validate
// guarantees the values they carry make sense.
type Validatable interface {
	Validate() error
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

var decMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	opts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// Encode serializes a payload in the canonical CBOR encoding every hostcall
// uses on the wire.
func Encode[T any](v T) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode deserializes bytes into a T and runs its Validate method, turning
// a bad decode or a failed validation into an ErrInvalidArgument GuestError
// — the hostcall runtime never needs to distinguish the two, since both
// mean "the guest sent us something we can't act on".
func Decode[T Validatable](data []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return v, kernelerr.NewInvalidArgumentError("malformed hostcall payload", err)
	}
	if err := v.Validate(); err != nil {
		return v, kernelerr.NewInvalidArgumentError("invalid hostcall payload", err)
	}
	return v, nil
}

// DecodeResult deserializes bytes produced by Encode into a T without
// running Validate: the bytecheck-equivalent pass only guards values a
// driver is about to act on, not a hostcall's own output on its way back
// to the caller. Used where T is a hostcall output type, including ones
// like []byte (shm::read) that have no Validate method to run.
func DecodeResult[T any](data []byte) (T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return v, kernelerr.NewSubsystemError("malformed hostcall result", err)
	}
	return v, nil
}
