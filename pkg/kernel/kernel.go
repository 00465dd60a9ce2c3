// Package kernel assembles the hostcall drivers in pkg/services into the
// operations a sandbox engine links into a guest instance's host module
// namespace.
package kernel

import (
	"fmt"

	"github.com/stacklok/vkernel/pkg/abi"
	"github.com/stacklok/vkernel/pkg/hostcall"
	"github.com/stacklok/vkernel/pkg/modulerepo"
	"github.com/stacklok/vkernel/pkg/registry"
	"github.com/stacklok/vkernel/pkg/services"
)

// Kernel owns the process-wide resource registry and every hostcall
// operation, wired against the capability catalogue in pkg/abi. An engine
// links each field below to its wasm import symbol (Operation.Module())
// and calls Create/Poll/Drop against whatever raw bytes the guest passed,
// decoding them into the operation's input type itself — this package only
// builds the operations, it does not know how any particular engine moves
// bytes in or out of guest memory.
type Kernel struct {
	Registry *registry.Registry
	Arena    *services.SharedMemoryDriver

	SessionCreate            *hostcall.Operation[abi.SessionCreate, abi.GuestUint]
	SessionRemove            *hostcall.Operation[abi.SessionRemove, abi.Empty]
	SessionAddEntitlement    *hostcall.Operation[abi.SessionEntitlement, abi.Empty]
	SessionRemoveEntitlement *hostcall.Operation[abi.SessionEntitlement, abi.Empty]
	SessionAddResource       *hostcall.Operation[abi.SessionResource, abi.GuestUint]
	SessionRemoveResource    *hostcall.Operation[abi.SessionResource, abi.GuestUint]

	SingletonRegister *hostcall.Operation[abi.SingletonRegister, abi.Empty]
	SingletonLookup   *hostcall.Operation[abi.SingletonLookup, abi.GuestResourceId]

	TimeNow   *hostcall.Operation[abi.Empty, abi.TimeNow]
	TimeSleep *hostcall.Operation[abi.TimeSleep, abi.Empty]

	ProcessStart *hostcall.Operation[abi.ProcessStart, abi.GuestResourceId]
	ProcessStop  *hostcall.Operation[abi.GuestResourceId, abi.Empty]

	ShmAlloc  *hostcall.Operation[abi.ShmAlloc, abi.ShmDescriptor]
	ShmShare  *hostcall.Operation[abi.ShmShare, abi.GuestResourceId]
	ShmAttach *hostcall.Operation[abi.ShmAttach, abi.ShmDescriptor]
	ShmDetach *hostcall.Operation[abi.ShmDetach, abi.Empty]
	ShmRead   *hostcall.Operation[abi.ShmRead, []byte]
	ShmWrite  *hostcall.Operation[abi.ShmWrite, abi.Empty]
}

// Config supplies the pluggable policy behind each capability family. Every
// field but Process has a kernel-owned default; Process has none because
// nothing in this package knows how to run a guest module — that is the
// sandbox engine's job.
type Config struct {
	SessionLifecycle services.SessionLifecycle
	Singleton        services.SingletonCapability
	Time             services.TimeCapability
	Arena            *services.SharedMemoryDriver
	Process          services.ProcessLifecycleCapability
	Modules          modulerepo.ReadCapability
}

// Build constructs a Kernel from cfg, filling in default service
// implementations for every field left zero except Process, which is
// mandatory: an engine or a test double must supply one.
func Build(cfg Config) (*Kernel, error) {
	if cfg.Process == nil {
		return nil, fmt.Errorf("kernel: a ProcessLifecycleCapability is required")
	}
	if cfg.SessionLifecycle == nil {
		cfg.SessionLifecycle = services.DefaultSessionLifecycle{}
	}
	if cfg.Singleton == nil {
		cfg.Singleton = services.SingletonRegistryService{}
	}
	if cfg.Time == nil {
		cfg.Time = services.NewSystemTimeService()
	}
	if cfg.Arena == nil {
		cfg.Arena = services.NewSharedMemoryDriver()
	}
	if cfg.Modules == nil {
		cfg.Modules = modulerepo.NewFilesystemRepository(".")
	}

	return &Kernel{
		Registry: registry.NewRegistry(),
		Arena:    cfg.Arena,

		SessionCreate:            hostcall.FromHostcall[abi.SessionCreate, abi.GuestUint](services.NewSessionCreateDriver(cfg.SessionLifecycle), abi.SessionCreateCall),
		SessionRemove:            hostcall.FromHostcall[abi.SessionRemove, abi.Empty](services.NewSessionRemoveDriver(cfg.SessionLifecycle), abi.SessionRemoveCall),
		SessionAddEntitlement:    hostcall.FromHostcall[abi.SessionEntitlement, abi.Empty](services.NewSessionAddEntitlementDriver(cfg.SessionLifecycle), abi.SessionAddEntitlementCall),
		SessionRemoveEntitlement: hostcall.FromHostcall[abi.SessionEntitlement, abi.Empty](services.NewSessionRemoveEntitlementDriver(cfg.SessionLifecycle), abi.SessionRmEntitlementCall),
		SessionAddResource:       hostcall.FromHostcall[abi.SessionResource, abi.GuestUint](services.NewSessionAddResourceDriver(cfg.SessionLifecycle), abi.SessionAddResourceCall),
		SessionRemoveResource:    hostcall.FromHostcall[abi.SessionResource, abi.GuestUint](services.NewSessionRemoveResourceDriver(cfg.SessionLifecycle), abi.SessionRmResourceCall),

		SingletonRegister: hostcall.FromHostcall[abi.SingletonRegister, abi.Empty](services.NewSingletonRegisterDriver(cfg.Singleton), abi.SingletonRegisterCall),
		SingletonLookup:   hostcall.FromHostcall[abi.SingletonLookup, abi.GuestResourceId](services.NewSingletonLookupDriver(cfg.Singleton), abi.SingletonLookupCall),

		TimeNow:   hostcall.FromHostcall[abi.Empty, abi.TimeNow](services.NewTimeNowDriver(cfg.Time), abi.TimeNowCall),
		TimeSleep: hostcall.FromHostcall[abi.TimeSleep, abi.Empty](services.NewTimeSleepDriver(cfg.Time), abi.TimeSleepCall),

		ProcessStart: hostcall.FromHostcall[abi.ProcessStart, abi.GuestResourceId](services.NewProcessStartDriver(cfg.Process, cfg.Modules), abi.ProcessStartCall),
		ProcessStop:  hostcall.FromHostcall[abi.GuestResourceId, abi.Empty](services.NewProcessStopDriver(cfg.Process), abi.ProcessStopCall),

		ShmAlloc:  hostcall.FromHostcall[abi.ShmAlloc, abi.ShmDescriptor](services.NewShmAllocDriver(cfg.Arena), abi.ShmAllocCall),
		ShmShare:  hostcall.FromHostcall[abi.ShmShare, abi.GuestResourceId](services.ShmShareDriver{}, abi.ShmShareCall),
		ShmAttach: hostcall.FromHostcall[abi.ShmAttach, abi.ShmDescriptor](services.ShmAttachDriver{}, abi.ShmAttachCall),
		ShmDetach: hostcall.FromHostcall[abi.ShmDetach, abi.Empty](services.ShmDetachDriver{}, abi.ShmDetachCall),
		ShmRead:   hostcall.FromHostcall[abi.ShmRead, []byte](services.NewShmReadDriver(cfg.Arena), abi.ShmReadCall),
		ShmWrite:  hostcall.FromHostcall[abi.ShmWrite, abi.Empty](services.NewShmWriteDriver(cfg.Arena), abi.ShmWriteCall),
	}, nil
}

// NewInstance allocates a fresh per-guest-instance slot table sharing this
// kernel's process-wide registry.
func (k *Kernel) NewInstance() *registry.InstanceRegistry {
	return registry.NewInstanceRegistry(k.Registry)
}

// Modules returns the wasm import symbol for every hostcall in catalogue
// order, the order an engine should register its host-module imports in.
func (k *Kernel) Modules() []string {
	names := make([]string, 0, len(abi.ALL))
	for _, meta := range abi.ALL {
		names = append(names, meta.Name)
	}
	return names
}
