// Package ledger keeps the durable, append-only log of terminal outcomes.
// Entries are never rewritten or removed once appended, except when a JSON log
// file turns out to be unreadable, in which case it starts over empty.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backends accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Entry is one logged outcome. AlphaID keys the entry: the remote alpha id when the
// service assigned one, otherwise the item's record fingerprint.
type Entry struct {
	AlphaID   string          `json:"alpha_id"`
	Timestamp int64           `json:"timestamp"`
	Outcome   string          `json:"outcome,omitempty"`
	RunID     string          `json:"run_id,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// NewEntry stamps an entry with the current time and marshals result into it.
func NewEntry(alphaID, outcome, runID string, result any) Entry {
	e := Entry{
		AlphaID:   alphaID,
		Timestamp: time.Now().Unix(),
		Outcome:   outcome,
		RunID:     runID,
	}
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			e.Result = data
		} else {
			e.Result, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
	}
	return e
}

// Time returns the entry timestamp in local time.
func (e Entry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}

// Ledger is an append-only outcome log.
type Ledger interface {
	Append(entry Entry) error
	Entries() ([]Entry, error)
	Close() error
}

// Open builds the ledger for the configured backend.
func Open(backend, path string, logger *zap.Logger) (Ledger, error) {
	switch backend {
	case "", BackendJSON:
		return NewFileLedger(path, logger), nil
	case BackendSQLite:
		return NewSQLiteLedger(path)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
