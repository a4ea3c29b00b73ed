package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/drag"
	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/store"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errValidation      = errors.New("validation failed")
)

func validationError(msg string) error {
	return &validationErr{msg: msg}
}

type validationErr struct{ msg string }

func (e *validationErr) Error() string { return e.msg }
func (e *validationErr) Unwrap() error { return errValidation }

// classify maps an error to its ws error code and HTTP status.
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, errUnauthenticated), errors.Is(err, session.ErrNotFound):
		return ws.ErrorCodeUnauthorized, http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return ws.ErrorCodeNotFound, http.StatusNotFound
	case errors.Is(err, drag.ErrDragInProgress), errors.Is(err, drag.ErrNotDragging):
		return ws.ErrorCodeConflict, http.StatusConflict
	case errors.Is(err, errValidation), errors.Is(err, models.ErrUnknownDragKind):
		return ws.ErrorCodeValidation, http.StatusBadRequest
	default:
		return ws.ErrorCodeInternalError, http.StatusInternalServerError
	}
}

func wsError(msg *ws.Message, log *logger.Logger, err error) (*ws.Message, error) {
	code, _ := classify(err)
	if code == ws.ErrorCodeInternalError {
		log.Error("board request failed", zap.String("action", msg.Action), zap.Error(err))
		return ws.NewError(msg.ID, msg.Action, code, "request failed", nil)
	}
	return ws.NewError(msg.ID, msg.Action, code, err.Error(), nil)
}

func httpError(c *gin.Context, log *logger.Logger, err error) {
	_, status := classify(err)
	if status == http.StatusInternalServerError {
		log.Error("board request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "request failed"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
