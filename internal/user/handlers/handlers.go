package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/user/controller"
	"github.com/kandev/taskboard/internal/user/dto"
	"github.com/kandev/taskboard/internal/user/service"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

type Handlers struct {
	controller *controller.Controller
	logger     *logger.Logger
}

func NewHandlers(ctrl *controller.Controller, log *logger.Logger) *Handlers {
	return &Handlers{
		controller: ctrl,
		logger:     log.WithFields(zap.String("component", "user-handlers")),
	}
}

// RegisterRoutes mounts signup and login publicly and the rest behind
// requireSession.
func RegisterRoutes(router *gin.Engine, requireSession gin.HandlerFunc, dispatcher *ws.Dispatcher, ctrl *controller.Controller, log *logger.Logger) {
	h := NewHandlers(ctrl, log)
	h.registerHTTP(router, requireSession)
	h.registerWS(dispatcher)
}

func (h *Handlers) registerHTTP(router *gin.Engine, requireSession gin.HandlerFunc) {
	api := router.Group("/api/v1")
	api.POST("/auth/signup", h.httpSignup)
	api.POST("/auth/login", h.httpLogin)

	authed := api.Group("", requireSession)
	authed.POST("/auth/logout", h.httpLogout)
	authed.GET("/user", h.httpGetUser)
}

func (h *Handlers) registerWS(dispatcher *ws.Dispatcher) {
	dispatcher.RegisterFunc(ws.ActionUserGet, h.wsGetUser)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, controller.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) httpError(c *gin.Context, err error, msg string) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handlers) httpSignup(c *gin.Context) {
	var body dto.SignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.controller.Signup(c.Request.Context(), body)
	if err != nil {
		h.httpError(c, err, "failed to sign up")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handlers) httpLogin(c *gin.Context) {
	var body dto.LoginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	resp, err := h.controller.Login(c.Request.Context(), body)
	if err != nil {
		h.httpError(c, err, "failed to log in")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) httpLogout(c *gin.Context) {
	sess, _ := auth.SessionFrom(c)
	if err := h.controller.Logout(c.Request.Context(), sess); err != nil {
		h.httpError(c, err, "failed to log out")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) httpGetUser(c *gin.Context) {
	resp, err := h.controller.GetCurrentUser(c.Request.Context())
	if err != nil {
		h.httpError(c, err, "failed to get user")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) wsGetUser(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	resp, err := h.controller.GetCurrentUser(ctx)
	if err != nil {
		switch statusOf(err) {
		case http.StatusUnauthorized:
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeUnauthorized, err.Error(), nil)
		case http.StatusNotFound:
			return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeNotFound, err.Error(), nil)
		}
		h.logger.Error("failed to get user", zap.Error(err))
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeInternalError, "failed to get user", nil)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}
