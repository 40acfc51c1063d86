package config

import "fmt"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, text
	File       string          `yaml:"file" json:"file,omitempty"`             // extra output path, e.g. simulation.log
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

func (c *LoggingConfig) validate() error {
	if !contains(validLevels, c.Level) {
		return fmt.Errorf("%w: log level %q (valid: %v)", ErrInvalid, c.Level, validLevels)
	}
	if !contains(validFormats, c.Format) {
		return fmt.Errorf("%w: log format %q (valid: %v)", ErrInvalid, c.Format, validFormats)
	}
	return nil
}
