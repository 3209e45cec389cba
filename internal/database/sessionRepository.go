package database

import (
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
)

func NewSessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

func (r *memorySessionRepository) Save(s *studio.Studio) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID()] = &sessionEntry{studio: s, lastSeen: r.now()}
	return nil
}

func (r *memorySessionRepository) FindByID(id string) (*studio.Studio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	return e.studio, nil
}

// Delete removes the session and cancels its in-flight render.
func (r *memorySessionRepository) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return entity.ErrSessionNotFound
	}
	e.studio.Close()
	return nil
}

func (r *memorySessionRepository) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		e.lastSeen = r.now()
	}
}

// IdleSince lists sessions not touched after cutoff.
func (r *memorySessionRepository) IdleSince(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *memorySessionRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
