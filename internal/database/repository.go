package database

import (
	"sync"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
)

// SessionRepository keeps live editing sessions. Nothing is persisted;
// sessions are gone after a restart.
type SessionRepository interface {
	Save(s *studio.Studio) error
	FindByID(id string) (*studio.Studio, error)
	Delete(id string) error
	Touch(id string)
	IdleSince(cutoff time.Time) []string
	Count() int
}

type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

type sessionEntry struct {
	studio   *studio.Studio
	lastSeen time.Time
}
