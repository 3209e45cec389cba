package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/service"
	"github.com/sirupsen/logrus"
)

// SessionReaper periodically drops sessions that have been idle for longer
// than ttl, releasing their rasters.
type SessionReaper struct {
	sessions service.SessionService
	interval time.Duration
	ttl      time.Duration
}

func NewSessionReaper(sessions service.SessionService, interval, ttl time.Duration) *SessionReaper {
	return &SessionReaper{
		sessions: sessions,
		interval: interval,
		ttl:      ttl,
	}
}

// Start blocks until ctx is done.
func (w *SessionReaper) Start(ctx context.Context) {
	if w.interval <= 0 {
		logrus.Warn("Session reaper disabled: reap interval is not positive")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{"interval": w.interval.String(), "ttl": w.ttl.String()}).Info("Session reaper started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Session reaper stopped")
			return
		case <-ticker.C:
			w.sessions.ReapIdle(w.ttl)
		}
	}
}
