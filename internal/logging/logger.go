// Package logging builds the zap logger used across alphaforge and hands out
// per-category named children. A category switched off in the configuration
// gets a no-op logger.
package logging

import (
	"fmt"
	"strings"
	"time"

	"alphaforge/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryGenerate Category = "generate" // Variant generation
	CategorySimulate Category = "simulate" // Submission pipeline
	CategoryFetch    Category = "fetch"    // Candidate population paging
	CategorySubmit   Category = "submit"   // Production submission
	CategoryLedger   Category = "ledger"   // Outcome log
	CategoryAuth     Category = "auth"     // Sign-in and re-authentication
	CategorySeed     Category = "seed"     // Data-field search and ratio seeding
)

// New builds a logger from cfg. Format "text" selects the development console
// encoder; anything else is production JSON. cfg.File is added as an extra
// output next to stderr.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "text" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a configured level name onto a zap level. Empty is info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// For returns the named child of logger for category. A nil logger yields a no-op.
func For(logger *zap.Logger, category Category) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(string(category))
}

// Registry hands out category loggers honouring the per-category toggles.
type Registry struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// NewRegistry wraps root with the toggles in cfg.
func NewRegistry(root *zap.Logger, cfg config.LoggingConfig) *Registry {
	if root == nil {
		root = zap.NewNop()
	}
	return &Registry{root: root, cfg: cfg}
}

// Get returns the logger for category, or a no-op logger if it is disabled.
func (r *Registry) Get(category Category) *zap.Logger {
	if !r.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return For(r.root, category)
}

// Root returns the unfiltered logger.
func (r *Registry) Root() *zap.Logger {
	return r.root
}

// Timer helps measure operation duration
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer begins timing an operation
func StartTimer(logger *zap.Logger, operation string) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timer{logger: logger, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Info(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}
