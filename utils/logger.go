package utils

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// LogOptions selects name, level and sink of a library logger
type LogOptions struct {
	Name   string
	Level  string // trace, debug, info, warn, error, off
	Output io.Writer
	JSON   bool
}

// NewLogger builds a named hclog logger. An unknown level falls back to warn.
func NewLogger(opts LogOptions) hclog.Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	name := opts.Name
	if name == "" {
		name = "spectral"
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})
}

// OrNull returns l, or a null logger when l is nil
func OrNull(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}
