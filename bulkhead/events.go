package bulkhead

import "time"

// EventKind identifies the kind of bulkhead event published on a
// Bulkhead's event bus.
type EventKind int

const (
	EventCallPermitted EventKind = iota
	EventCallRejected
	EventCallFinished
)

func (k EventKind) String() string {
	switch k {
	case EventCallPermitted:
		return "CALL_PERMITTED"
	case EventCallRejected:
		return "CALL_REJECTED"
	case EventCallFinished:
		return "CALL_FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry on a Bulkhead's event bus.
type Event struct {
	Kind          EventKind
	PolicyName    string
	CorrelationID string
	Timestamp     time.Time
}
