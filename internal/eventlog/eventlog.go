// Package eventlog writes the append-only audit trail of tracking
// transitions to a rotating JSON log file. It is observability, not part of
// the consistency contract: write failures are swallowed and never block or
// roll back a state mutation.
package eventlog

import (
	"log/slog"
	"time"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/logging"
)

// Event is one tracking transition record.
type Event struct {
	TS         time.Time
	Plate      string
	CameraID   string
	OldStatus  string
	NewStatus  string
	Reason     string
	Detections int
	PathLen    int
}

// Logger appends transition events to the audit log.
type Logger struct {
	logger  *slog.Logger
	closeFn func() error
}

// New creates an event logger writing to the configured rotating file.
// When the event log output is disabled it returns a no-op logger.
func New(settings *conf.Settings) (*Logger, error) {
	cfg := settings.Main.EventLog
	if !cfg.Enabled {
		return &Logger{}, nil
	}

	logger, closeFn, err := logging.NewFileLogger(cfg.Path, "eventlog", slog.LevelInfo, logging.FileRotation{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	return &Logger{logger: logger, closeFn: closeFn}, nil
}

// NewWithLogger wraps an existing slog logger. Used by tests.
func NewWithLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// Log appends one transition event. Never fails; a broken log sink only
// loses audit lines.
func (l *Logger) Log(ev Event) {
	if l == nil || l.logger == nil {
		return
	}

	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	l.logger.Info("transition",
		"ts", ts.UTC().Format(time.RFC3339Nano),
		"plate", ev.Plate,
		"camera_id", ev.CameraID,
		"old_status", ev.OldStatus,
		"new_status", ev.NewStatus,
		"reason", ev.Reason,
		"detections", ev.Detections,
		"path_len", ev.PathLen,
	)
}

// Close releases the underlying log writer.
func (l *Logger) Close() error {
	if l == nil || l.closeFn == nil {
		return nil
	}
	return l.closeFn()
}
