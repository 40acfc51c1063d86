package simulation

import "fmt"

// State is the position of one item in the submission state machine.
type State int

const (
	// Pending - waiting to be (re)submitted
	Pending State = iota
	// Submitted - create request in flight
	Submitted
	// Polling - handle obtained, waiting for the terminal payload
	Polling
	// Reauthenticated - retry budget exhausted once, session replaced
	Reauthenticated
	// Succeeded - terminal payload with no failing check
	Succeeded
	// FailedChecks - terminal payload with at least one failing check
	FailedChecks
	// Skipped - retry budget exhausted after re-authentication
	Skipped
	// TimedOut - the poll bound elapsed before the payload was ready
	TimedOut
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Submitted:
		return "SUBMITTED"
	case Polling:
		return "POLLING"
	case Reauthenticated:
		return "REAUTHENTICATED"
	case Succeeded:
		return "SUCCEEDED"
	case FailedChecks:
		return "FAILED_CHECKS"
	case Skipped:
		return "SKIPPED"
	case TimedOut:
		return "TIMED_OUT"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Terminal reports whether the item is finished.
func (s State) Terminal() bool {
	switch s {
	case Succeeded, FailedChecks, Skipped, TimedOut:
		return true
	}
	return false
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
