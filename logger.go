package ember

import (
	"log/slog"

	"github.com/gogpu/ember/internal/elog"
)

// SetLogger configures the logger for ember and all its sub-packages.
// By default, ember produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by ember:
//   - [slog.LevelDebug]: internal diagnostics (pipeline compiles, pass declarations)
//   - [slog.LevelInfo]: important lifecycle events (backend selected, surface configured)
//   - [slog.LevelWarn]: non-fatal per-frame issues (surface lost, dropped batches)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	ember.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	ember.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	elog.Set(l)
}

// Logger returns the current logger used by ember.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return elog.Logger()
}
