// Package logger provides the plain stdlib logger used by queue consumers,
// which log in printf style rather than through slog.
package logger

import (
	"log"
	"os"
)

// New returns a logger writing UTC-stamped lines to stderr, prefixed with
// the component name after the timestamp.
func New(component string) *log.Logger {
	return log.New(os.Stderr, component+": ", log.LstdFlags|log.LUTC|log.Lmsgprefix)
}
