package uthread

import (
	"io"
	"log/slog"
	"os"
)

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stderr, cfg.Debug)
}

// scheduleLog records a scheduling event for t at debug level.
func (s *Scheduler) scheduleLog(msg string, t *thread) {
	if t == nil {
		s.log.Debug(msg)
		return
	}
	s.log.Debug(msg, "tid", t.tid, "status", statusString(t.status))
}
