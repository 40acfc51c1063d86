package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileLedger stores entries as one indented JSON array. Every Append reads the
// current file, merges the new entry and writes the whole array back.
type FileLedger struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileLedger returns a ledger backed by the JSON file at path. The file is
// created on first Append.
func NewFileLedger(path string, logger *zap.Logger) *FileLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLedger{path: path, logger: logger}
}

// Path returns the backing file path.
func (l *FileLedger) Path() string {
	return l.path
}

// Append merges entry into the file. An unreadable or corrupt file is replaced by
// an empty log first; that loss is logged, not returned.
func (l *FileLedger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		l.logger.Warn("ledger unreadable, resetting to empty",
			zap.String("path", l.path), zap.Error(err))
		entries = nil
	}
	entries = append(entries, entry)

	if err := l.saveLocked(entries); err != nil {
		return err
	}
	l.logger.Debug("ledger entry recorded",
		zap.String("alpha_id", entry.AlphaID), zap.String("outcome", entry.Outcome))
	return nil
}

// Entries returns the stored entries. A missing file is an empty log.
func (l *FileLedger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Close is a no-op; the file is not held open between appends.
func (l *FileLedger) Close() error {
	return nil
}

func (l *FileLedger) load() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	return entries, nil
}

// saveLocked writes through a temp file and rename so a crash mid-write never
// leaves a truncated log behind.
func (l *FileLedger) saveLocked(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0644); err != nil {
		l.logger.Debug("ledger chmod failed", zap.Error(err))
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
