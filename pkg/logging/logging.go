// Package logging installs the process-wide slog logger for both binaries.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config is the shared `log:` section.
type Config struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is json (default) or text.
	Format string `yaml:"format"`
}

// DefaultConfig logs JSON at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// Validate rejects unknown levels and formats.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
}

// Setup builds a handler for cfg writing to w, installs it as the slog
// default, and returns the LevelVar so a config reload can change the level
// without rebuilding the handler.
func Setup(cfg Config, w io.Writer) *slog.LevelVar {
	level := new(slog.LevelVar)
	Apply(level, cfg)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return level
}

// Apply sets level from cfg. An invalid level leaves it unchanged.
func Apply(level *slog.LevelVar, cfg Config) {
	l, err := ParseLevel(cfg.Level)
	if err != nil {
		slog.Warn("logging: ignoring invalid level", "level", cfg.Level)
		return
	}
	level.Set(l)
}
