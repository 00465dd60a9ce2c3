package abi

import kernelerr "github.com/stacklok/vkernel/pkg/errors"

// StatusWord is the single uint32 a `poll` hostcall hook returns to the
// guest. Its value space is split so the guest never needs a second call
// just to learn whether a call is still pending:
//
//   - 0 is the pending sentinel.
//   - 1..statusHalf-1 means ready, and the value is the number of bytes the
//     driver wrote into the guest's output buffer.
//   - statusHalf..statusReserved-1 encodes one of the guest error type
//     ordinals directly in the status word, for errors with no payload
//     worth sending.
//   - statusReserved means "the error's message was written into the
//     guest's output buffer as a CBOR-encoded GuestError"; the guest must
//     decode the buffer to recover it.
type StatusWord uint32

const (
	statusPending  StatusWord = 0
	statusHalf     StatusWord = 1 << 31
	statusReserved StatusWord = 0xFFFFFFFF
)

// EncodePending returns the pending sentinel.
func EncodePending() StatusWord { return statusPending }

// EncodeReady returns the status word for a ready result of n bytes.
// n must be strictly less than statusHalf; the arena and every payload in
// this package are far smaller than that, so callers never need to check.
func EncodeReady(n uint32) StatusWord {
	return StatusWord(n)
}

// EncodeErrorWithMessage returns the reserved status word, signalling that
// the driver wrote a CBOR-encoded GuestError into the guest's output
// buffer.
func EncodeErrorWithMessage() StatusWord { return statusReserved }

// EncodeErrorCode returns the status word for a guest error type that needs
// no accompanying message buffer.
func EncodeErrorCode(t kernelerr.GuestErrorType) StatusWord {
	return statusHalf + StatusWord(guestErrorOrdinal(t))
}

// Decode classifies a status word as observed by the guest side of the ABI.
func (s StatusWord) Decode() (pending bool, ready bool, readyLen uint32, errType kernelerr.GuestErrorType, hasMessage bool) {
	switch {
	case s == statusPending:
		return true, false, 0, "", false
	case s == statusReserved:
		return false, false, 0, "", true
	case s >= statusHalf:
		return false, false, 0, guestErrorFromOrdinal(uint32(s - statusHalf)), false
	default:
		return false, true, uint32(s), "", false
	}
}

var guestErrorOrdinals = []kernelerr.GuestErrorType{
	kernelerr.ErrInvalidArgument,
	kernelerr.ErrInvalidUTF8,
	kernelerr.ErrMemorySlice,
	kernelerr.ErrNotFound,
	kernelerr.ErrPermissionDenied,
	kernelerr.ErrStableIDExists,
	kernelerr.ErrWouldBlock,
	kernelerr.ErrKernel,
	kernelerr.ErrRegistry,
	kernelerr.ErrSubsystem,
}

func guestErrorOrdinal(t kernelerr.GuestErrorType) uint32 {
	for i, v := range guestErrorOrdinals {
		if v == t {
			return uint32(i)
		}
	}
	return uint32(len(guestErrorOrdinals))
}

func guestErrorFromOrdinal(ord uint32) kernelerr.GuestErrorType {
	if int(ord) < len(guestErrorOrdinals) {
		return guestErrorOrdinals[ord]
	}
	return kernelerr.ErrSubsystem
}
