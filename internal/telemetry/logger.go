// Package telemetry sets up logging, metrics and tracing for the process.
package telemetry

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// NewLogger returns the root logger. Unknown levels fall back to info.
func NewLogger(name, level string) hclog.Logger {
	return newLogger(name, level, os.Stderr)
}

func newLogger(name, level string, out io.Writer) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: out,
	})
}
