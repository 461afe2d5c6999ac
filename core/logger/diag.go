package logger

import (
	"io"

	"github.com/charmbracelet/log"
)

// New creates the diagnostics logger. Shell output never goes through it.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix: "forksh",
		Level:  level,
	})
}

// ParseLevel parses a level name such as "debug" or "warn". An empty name
// is the warn level.
func ParseLevel(name string) (log.Level, error) {
	if name == "" {
		return log.WarnLevel, nil
	}
	return log.ParseLevel(name)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
