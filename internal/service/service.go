package service

import (
	"time"

	"github.com/ds124wfegd/imagestudio/internal/database"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/kafka"
	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
	"github.com/sirupsen/logrus"
)

type SessionService interface {
	Create(image []byte) (*studio.Studio, entity.SessionState, error)
	Get(id string) (*studio.Studio, error)
	Delete(id string) error
	ReapIdle(ttl time.Duration) int
}

type sessionService struct {
	repo     database.SessionRepository
	renderer studio.Renderer
	gateway  studio.Gateway
	producer kafka.Producer
	opts     studio.Options
	log      *logrus.Entry
}

// NewSessionService wires new sessions to the shared renderer, gateway and
// producer. gateway may be nil.
func NewSessionService(repo database.SessionRepository, renderer studio.Renderer, gateway studio.Gateway,
	producer kafka.Producer, opts studio.Options, log *logrus.Entry) SessionService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &sessionService{
		repo:     repo,
		renderer: renderer,
		gateway:  gateway,
		producer: producer,
		opts:     opts,
		log:      log,
	}
}
