package simulation

import (
	"time"

	"alphaforge/internal/alpha"
	"alphaforge/internal/brain"
)

// Attempt is the transient retry state of the item being submitted. It lives
// only until the item reaches a terminal outcome.
type Attempt struct {
	Index           int
	State           State
	Failures        int
	Submits         int
	Reauthenticated bool
	Handle          string
	LastErr         error
}

// Outcome is the terminal record of one item.
type Outcome struct {
	Index           int                     `json:"index"`
	State           State                   `json:"state"`
	AlphaID         string                  `json:"alpha_id,omitempty"`
	Handle          string                  `json:"handle,omitempty"`
	Regular         string                  `json:"regular"`
	Submits         int                     `json:"submits"`
	Reauthenticated bool                    `json:"reauthenticated,omitempty"`
	FailedChecks    []alpha.Check           `json:"failed_checks,omitempty"`
	Error           string                  `json:"error,omitempty"`
	Result          *brain.SimulationResult `json:"result,omitempty"`
	Elapsed         time.Duration           `json:"elapsed_ns"`
}

// Key identifies the outcome in the ledger: the alpha id when the service
// assigned one, otherwise the record fingerprint.
func (o Outcome) Key(rec alpha.Record) string {
	if o.AlphaID != "" {
		return o.AlphaID
	}
	return alpha.Fingerprint(rec)
}

// Report summarises a batch. It is returned also when the batch was aborted,
// and then covers only the items finished before the abort.
type Report struct {
	RunID    string
	Outcomes []Outcome

	Succeeded    int
	FailedChecks int
	Skipped      int
	TimedOut     int

	// Aborted holds the fatal error that ended the batch early, if any.
	Aborted error
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.State {
	case Succeeded:
		r.Succeeded++
	case FailedChecks:
		r.FailedChecks++
	case Skipped:
		r.Skipped++
	case TimedOut:
		r.TimedOut++
	}
}

// Processed is the number of items that reached a terminal outcome.
func (r *Report) Processed() int {
	return len(r.Outcomes)
}
