package service

import (
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Create starts a session from an uploaded image. Nothing is stored when the
// image cannot be decoded.
func (s *sessionService) Create(image []byte) (*studio.Studio, entity.SessionState, error) {
	id := uuid.New().String()
	st := studio.New(id, s.renderer, s.gateway, s.producer, s.opts, s.log)

	state, err := st.Upload(image)
	if err != nil {
		return nil, entity.SessionState{}, err
	}
	if err := s.repo.Save(st); err != nil {
		return nil, entity.SessionState{}, err
	}

	s.log.WithFields(logrus.Fields{"session": id, "width": state.Width, "height": state.Height}).Info("session created")
	return st, state, nil
}

func (s *sessionService) Get(id string) (*studio.Studio, error) {
	st, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	s.repo.Touch(id)
	return st, nil
}

func (s *sessionService) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.log.WithField("session", id).Info("session deleted")
	return nil
}

// ReapIdle drops sessions untouched for longer than ttl and reports how many
// were removed.
func (s *sessionService) ReapIdle(ttl time.Duration) int {
	removed := 0
	for _, id := range s.repo.IdleSince(time.Now().Add(-ttl)) {
		if err := s.repo.Delete(id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.WithFields(logrus.Fields{"removed": removed, "remaining": s.repo.Count()}).Info("idle sessions reaped")
	}
	return removed
}
