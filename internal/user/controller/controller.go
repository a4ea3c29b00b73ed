package controller

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
	"github.com/kandev/taskboard/internal/user/dto"
	"github.com/kandev/taskboard/internal/user/service"
)

// ErrNoSession is returned when a request carries no session.
var ErrNoSession = errors.New("authentication required")

// BoardCloser flushes and releases a session's board.
type BoardCloser interface {
	Close(ctx context.Context, sessionID string) error
}

// SessionDisconnector drops the sockets of a session.
type SessionDisconnector interface {
	CloseSession(sessionID string)
}

type Controller struct {
	svc     *service.Service
	auth    *auth.Manager
	boards  BoardCloser
	sockets SessionDisconnector
	logger  *logger.Logger
}

// NewController wires accounts to sessions. sockets may be nil.
func NewController(svc *service.Service, authManager *auth.Manager, boards BoardCloser, sockets SessionDisconnector, log *logger.Logger) *Controller {
	return &Controller{
		svc:     svc,
		auth:    authManager,
		boards:  boards,
		sockets: sockets,
		logger:  log.WithFields(zap.String("component", "user-controller")),
	}
}

// Signup creates the account and logs it in.
func (c *Controller) Signup(ctx context.Context, req dto.SignupRequest) (dto.AuthResponse, error) {
	if _, err := c.svc.Register(ctx, service.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		return dto.AuthResponse{}, err
	}
	return c.Login(ctx, dto.LoginRequest{Email: req.Email, Password: req.Password})
}

func (c *Controller) Login(ctx context.Context, req dto.LoginRequest) (dto.AuthResponse, error) {
	if err := service.ValidateCredentials(req.Email, req.Password); err != nil {
		return dto.AuthResponse{}, err
	}
	token, sess, err := c.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	user, err := c.svc.GetUser(ctx, sess.OwnerID)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	return dto.AuthResponse{
		Token:   token,
		User:    dto.FromUser(user),
		Session: dto.FromSession(sess),
	}, nil
}

// Logout flushes the session's board, revokes the session and disconnects
// its sockets. A failed flush is logged and does not keep the session alive.
func (c *Controller) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return ErrNoSession
	}
	if err := c.boards.Close(ctx, sess.ID); err != nil {
		c.logger.Error("board not fully persisted at logout",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	if err := c.auth.Logout(ctx, sess.ID); err != nil {
		return err
	}
	if c.sockets != nil {
		c.sockets.CloseSession(sess.ID)
	}
	return nil
}

func (c *Controller) GetCurrentUser(ctx context.Context) (dto.UserResponse, error) {
	sess, ok := auth.SessionFromContext(ctx)
	if !ok {
		return dto.UserResponse{}, ErrNoSession
	}
	user, err := c.svc.GetUser(ctx, sess.OwnerID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.UserResponse{User: dto.FromUser(user)}, nil
}
