package services

import (
	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/session"
)

// ProcessLifecycleCapability is the pluggable policy behind process::start
// and process::stop: whatever runs a guest module — an in-process stub for
// tests, or a wazero-backed sandbox instance in pkg/engine — implements
// this to plug into the kernel's process hostcalls. The process value
// Start returns is opaque to the kernel; it is stored in the process-wide
// registry under ResourceProcess and handed back to Stop verbatim.
type ProcessLifecycleCapability interface {
	Start(moduleID, name string, capabilities []session.Capability, invocation abi.EntrypointInvocation) (process any, err error)
	Stop(process any) error
}
