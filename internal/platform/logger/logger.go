package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Components receive it via
// constructor injection so tests can swap in a discarding handler.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
