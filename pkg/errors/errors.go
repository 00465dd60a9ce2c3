// Package errors defines the wrapped-error taxonomies shared across the
// kernel: the guest-visible taxonomy surfaced through the hostcall ABI, and
// the kernel-internal taxonomy used between the runtime and its drivers.
package errors

import "fmt"

// GuestErrorType identifies a guest-visible failure category.
type GuestErrorType string

// Guest-visible error types, per the hostcall ABI's error taxonomy.
const (
	ErrInvalidArgument  GuestErrorType = "invalid_argument"
	ErrInvalidUTF8      GuestErrorType = "invalid_utf8"
	ErrMemorySlice      GuestErrorType = "memory_slice"
	ErrNotFound         GuestErrorType = "not_found"
	ErrPermissionDenied GuestErrorType = "permission_denied"
	ErrStableIDExists   GuestErrorType = "stable_id_exists"
	ErrWouldBlock       GuestErrorType = "would_block"
	ErrKernel           GuestErrorType = "kernel"
	ErrRegistry         GuestErrorType = "registry"
	ErrSubsystem        GuestErrorType = "subsystem"
)

// GuestError is the concrete error type returned by every driver and
// surfaced, in some encoded form, to the guest across the ABI boundary.
type GuestError struct {
	Type    GuestErrorType
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GuestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *GuestError) Unwrap() error {
	return e.Cause
}

// NewGuestError builds a GuestError of the given type.
func NewGuestError(t GuestErrorType, message string, cause error) *GuestError {
	return &GuestError{Type: t, Message: message, Cause: cause}
}

// NewInvalidArgumentError builds an ErrInvalidArgument GuestError.
func NewInvalidArgumentError(message string, cause error) *GuestError {
	return NewGuestError(ErrInvalidArgument, message, cause)
}

// NewInvalidUTF8Error builds an ErrInvalidUTF8 GuestError.
func NewInvalidUTF8Error(message string, cause error) *GuestError {
	return NewGuestError(ErrInvalidUTF8, message, cause)
}

// NewMemorySliceError builds an ErrMemorySlice GuestError.
func NewMemorySliceError(message string, cause error) *GuestError {
	return NewGuestError(ErrMemorySlice, message, cause)
}

// NewNotFoundError builds an ErrNotFound GuestError.
func NewNotFoundError(message string, cause error) *GuestError {
	return NewGuestError(ErrNotFound, message, cause)
}

// NewPermissionDeniedError builds an ErrPermissionDenied GuestError.
func NewPermissionDeniedError(message string, cause error) *GuestError {
	return NewGuestError(ErrPermissionDenied, message, cause)
}

// NewStableIDExistsError builds an ErrStableIDExists GuestError.
func NewStableIDExistsError(message string, cause error) *GuestError {
	return NewGuestError(ErrStableIDExists, message, cause)
}

// NewWouldBlockError builds an ErrWouldBlock GuestError.
func NewWouldBlockError(message string, cause error) *GuestError {
	return NewGuestError(ErrWouldBlock, message, cause)
}

// NewKernelGuestError builds an ErrKernel GuestError wrapping a KernelError.
func NewKernelGuestError(cause *KernelError) *GuestError {
	return NewGuestError(ErrKernel, "the kernel encountered an error", cause)
}

// NewRegistryGuestError builds an ErrRegistry GuestError wrapping a RegistryError.
func NewRegistryGuestError(cause *RegistryError) *GuestError {
	return NewGuestError(ErrRegistry, "the registry encountered an error", cause)
}

// NewSubsystemError builds an ErrSubsystem GuestError carrying a free-form message.
func NewSubsystemError(message string, cause error) *GuestError {
	return NewGuestError(ErrSubsystem, message, cause)
}

func isGuestType(err error, t GuestErrorType) bool {
	var ge *GuestError
	if err == nil {
		return false
	}
	ge, ok := err.(*GuestError)
	if !ok {
		return false
	}
	return ge.Type == t
}

// IsInvalidArgument reports whether err is an ErrInvalidArgument GuestError.
func IsInvalidArgument(err error) bool { return isGuestType(err, ErrInvalidArgument) }

// IsInvalidUTF8 reports whether err is an ErrInvalidUTF8 GuestError.
func IsInvalidUTF8(err error) bool { return isGuestType(err, ErrInvalidUTF8) }

// IsMemorySlice reports whether err is an ErrMemorySlice GuestError.
func IsMemorySlice(err error) bool { return isGuestType(err, ErrMemorySlice) }

// IsNotFound reports whether err is an ErrNotFound GuestError.
func IsNotFound(err error) bool { return isGuestType(err, ErrNotFound) }

// IsPermissionDenied reports whether err is an ErrPermissionDenied GuestError.
func IsPermissionDenied(err error) bool { return isGuestType(err, ErrPermissionDenied) }

// IsStableIDExists reports whether err is an ErrStableIDExists GuestError.
func IsStableIDExists(err error) bool { return isGuestType(err, ErrStableIDExists) }

// IsWouldBlock reports whether err is an ErrWouldBlock GuestError.
func IsWouldBlock(err error) bool { return isGuestType(err, ErrWouldBlock) }

// IsKernel reports whether err is an ErrKernel GuestError.
func IsKernel(err error) bool { return isGuestType(err, ErrKernel) }

// IsRegistry reports whether err is an ErrRegistry GuestError.
func IsRegistry(err error) bool { return isGuestType(err, ErrRegistry) }

// IsSubsystem reports whether err is an ErrSubsystem GuestError.
func IsSubsystem(err error) bool { return isGuestType(err, ErrSubsystem) }

// KernelErrorType identifies a kernel-internal failure category.
type KernelErrorType string

// Kernel-internal error types.
const (
	ErrEngine          KernelErrorType = "engine"
	ErrMemoryAccess    KernelErrorType = "memory_access"
	ErrMemoryCapacity  KernelErrorType = "memory_capacity"
	ErrMemoryMissing   KernelErrorType = "memory_missing"
	ErrIntConvert      KernelErrorType = "int_convert"
	ErrInvalidHandle   KernelErrorType = "invalid_handle"
	ErrKernelRegistry  KernelErrorType = "registry"
	ErrDriver          KernelErrorType = "driver"
)

// KernelError is the error type used internally by the runtime, engine
// adapters, and drivers before being converted into a GuestError at the
// hostcall boundary.
type KernelError struct {
	Type    KernelErrorType
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *KernelError) Unwrap() error {
	return e.Cause
}

// NewKernelError builds a KernelError of the given type.
func NewKernelError(t KernelErrorType, message string, cause error) *KernelError {
	return &KernelError{Type: t, Message: message, Cause: cause}
}

// NewEngineError builds an ErrEngine KernelError.
func NewEngineError(message string, cause error) *KernelError {
	return NewKernelError(ErrEngine, message, cause)
}

// NewMemoryAccessError builds an ErrMemoryAccess KernelError.
func NewMemoryAccessError(message string, cause error) *KernelError {
	return NewKernelError(ErrMemoryAccess, message, cause)
}

// NewMemoryCapacityError builds an ErrMemoryCapacity KernelError.
func NewMemoryCapacityError() *KernelError {
	return NewKernelError(ErrMemoryCapacity, "guest did not reserve enough memory for this call", nil)
}

// NewMemoryMissingError builds an ErrMemoryMissing KernelError.
func NewMemoryMissingError() *KernelError {
	return NewKernelError(ErrMemoryMissing, "could not retrieve guest memory from caller", nil)
}

// NewIntConvertError builds an ErrIntConvert KernelError.
func NewIntConvertError(cause error) *KernelError {
	return NewKernelError(ErrIntConvert, "could not convert integer", cause)
}

// NewInvalidHandleError builds an ErrInvalidHandle KernelError.
func NewInvalidHandleError() *KernelError {
	return NewKernelError(ErrInvalidHandle, "invalid resource handle provided by guest", nil)
}

// NewKernelRegistryError builds an ErrKernelRegistry KernelError wrapping a RegistryError.
func NewKernelRegistryError(cause *RegistryError) *KernelError {
	return NewKernelError(ErrKernelRegistry, "registry error", cause)
}

// NewDriverError builds an ErrDriver KernelError carrying a free-form message.
func NewDriverError(message string) *KernelError {
	return NewKernelError(ErrDriver, message, nil)
}

// AsGuestError converts a KernelError into the GuestError surfaced to the guest.
func (e *KernelError) AsGuestError() *GuestError {
	return NewKernelGuestError(e)
}

func isKernelType(err error, t KernelErrorType) bool {
	if err == nil {
		return false
	}
	ke, ok := err.(*KernelError)
	if !ok {
		return false
	}
	return ke.Type == t
}

// IsEngine reports whether err is an ErrEngine KernelError.
func IsEngine(err error) bool { return isKernelType(err, ErrEngine) }

// IsDriver reports whether err is an ErrDriver KernelError.
func IsDriver(err error) bool { return isKernelType(err, ErrDriver) }

// RegistryErrorType identifies a resource registry failure category.
type RegistryErrorType string

// Registry error types, per spec §4.1.
const (
	ErrExhausted RegistryErrorType = "exhausted"
	ErrWrongKind RegistryErrorType = "wrong_kind"
	ErrRegNotFound RegistryErrorType = "not_found"
)

// RegistryError is returned by the resource registry's own operations.
type RegistryError struct {
	Type    RegistryErrorType
	Message string
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry: %s: %s", e.Type, e.Message)
}

// NewRegistryError builds a RegistryError of the given type.
func NewRegistryError(t RegistryErrorType, message string) *RegistryError {
	return &RegistryError{Type: t, Message: message}
}

// ErrRegistryExhausted is returned when the resource id space is exhausted.
func ErrRegistryExhausted() *RegistryError {
	return NewRegistryError(ErrExhausted, "resource id space exhausted")
}

// ErrRegistryWrongKind is returned when a typed downcast does not match the stored kind.
func ErrRegistryWrongKind() *RegistryError {
	return NewRegistryError(ErrWrongKind, "resource type does not match requested handle")
}

// ErrRegistryNotFound is returned when an id is unknown to the registry.
func ErrRegistryNotFound() *RegistryError {
	return NewRegistryError(ErrRegNotFound, "resource id not found")
}

func isRegistryType(err error, t RegistryErrorType) bool {
	if err == nil {
		return false
	}
	re, ok := err.(*RegistryError)
	if !ok {
		return false
	}
	return re.Type == t
}

// IsExhausted reports whether err is an ErrExhausted RegistryError.
func IsExhausted(err error) bool { return isRegistryType(err, ErrExhausted) }

// IsWrongKind reports whether err is an ErrWrongKind RegistryError.
func IsWrongKind(err error) bool { return isRegistryType(err, ErrWrongKind) }

// IsRegNotFound reports whether err is an ErrRegNotFound RegistryError.
func IsRegNotFound(err error) bool { return isRegistryType(err, ErrRegNotFound) }
