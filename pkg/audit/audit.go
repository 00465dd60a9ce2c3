// Package audit records every capability-gated mutation a session drives
// through the hostcall ABI: session lifecycle changes, singleton
// registration, and process lifecycle changes. It follows the same
// package-level-singleton shape as pkg/logger, since an audit sink is as
// process-wide a concern as the logger it writes through by default.
package audit

import (
	"sync/atomic"
	"time"

	"github.com/stacklok/vkernel/pkg/logger"
)

// EventType identifies which capability-gated mutation an Event records.
type EventType string

// The complete set of audited hostcalls: every mutation SPEC_FULL's
// capability model gates, per pkg/session's closed capability set.
const (
	EventSessionCreate            EventType = "session.create"
	EventSessionRemove            EventType = "session.remove"
	EventSessionAddEntitlement    EventType = "session.add_entitlement"
	EventSessionRemoveEntitlement EventType = "session.rm_entitlement"
	EventSessionAddResource       EventType = "session.add_resource"
	EventSessionRemoveResource    EventType = "session.rm_resource"
	EventSingletonRegister        EventType = "singleton.register"
	EventProcessStart             EventType = "process.start"
	EventProcessStop              EventType = "process.stop"
)

// Outcome records whether the audited mutation succeeded.
type Outcome string

// The two possible outcomes of an audited mutation.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audited mutation.
type Event struct {
	Type    EventType
	Outcome Outcome
	// Actor is the acting session's process-wide ResourceId.
	Actor uint64
	// Target is the resource the mutation acted on, 0 if not applicable.
	Target uint64
	Detail string
	At     time.Time
}

// Sink receives audit events. Tests substitute a recording Sink; production
// code defaults to LogSink.
type Sink interface {
	Emit(Event)
}

// LogSink emits audit events through the process-wide logger.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(e Event) {
	logger.Infow("audit event",
		"audit_type", string(e.Type),
		"audit_outcome", string(e.Outcome),
		"audit_actor", e.Actor,
		"audit_target", e.Target,
		"audit_detail", e.Detail,
		"audit_at", e.At,
	)
}

var active atomic.Pointer[Sink]

func init() {
	var s Sink = LogSink{}
	active.Store(&s)
}

// SetSink replaces the process-wide audit sink. Passing nil restores
// LogSink.
func SetSink(s Sink) {
	if s == nil {
		s = LogSink{}
	}
	active.Store(&s)
}

// Emit stamps e.At if unset and dispatches it to the active sink.
func Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	(*active.Load()).Emit(e)
}
