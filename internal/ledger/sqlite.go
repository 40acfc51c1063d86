package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLedger stores entries as rows of an append-only table.
type SQLiteLedger struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewSQLiteLedger creates or opens the ledger database at dbPath.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db, dbPath: dbPath}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		alpha_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		run_id TEXT NOT NULL DEFAULT '',
		result_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_alpha ON outcomes(alpha_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (l *SQLiteLedger) Path() string {
	return l.dbPath
}

// Append inserts entry.
func (l *SQLiteLedger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result any
	if len(entry.Result) > 0 {
		result = string(entry.Result)
	}
	_, err := l.db.Exec(
		`INSERT INTO outcomes (alpha_id, timestamp, outcome, run_id, result_json) VALUES (?, ?, ?, ?, ?)`,
		entry.AlphaID, entry.Timestamp, entry.Outcome, entry.RunID, result,
	)
	if err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}
	return nil
}

// Entries returns every entry in append order.
func (l *SQLiteLedger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`SELECT alpha_id, timestamp, outcome, run_id, result_json FROM outcomes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var result sql.NullString
		if err := rows.Scan(&e.AlphaID, &e.Timestamp, &e.Outcome, &e.RunID, &result); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		if result.Valid {
			e.Result = []byte(result.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
