package transport

import (
	"context"
	"errors"
	"net/http"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/service"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	service        service.SessionService
	maxUploadBytes int64
}

func NewSessionHandler(service service.SessionService, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// statusFor maps domain errors onto HTTP statuses. GatewayError is checked
// before DecodeError because an unreadable gateway reply wraps both.
func statusFor(err error) int {
	var (
		verr  *entity.ValidationError
		gerr  *entity.GatewayError
		derr  *entity.DecodeError
		eerr  *entity.EncodeError
		mberr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &gerr):
		return http.StatusBadGateway
	case errors.As(err, &derr):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNoImage),
		errors.Is(err, entity.ErrSuperseded),
		errors.Is(err, entity.ErrNothingToUndo),
		errors.Is(err, entity.ErrNothingToRedo):
		return http.StatusConflict
	case errors.Is(err, entity.ErrUploadTooLarge), errors.As(err, &mberr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, entity.ErrGatewayDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &eerr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	resp := entity.ErrorResponse{Error: err.Error()}
	var gerr *entity.GatewayError
	if errors.As(err, &gerr) {
		resp.Status = gerr.Status
	}
	c.JSON(statusFor(err), resp)
}
