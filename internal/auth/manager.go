package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
)

// ErrSessionNotFound is returned when a token outlives its session, for
// example after logout.
var ErrSessionNotFound = errors.New("session not found")

// Authenticator resolves credentials to an owner id.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// Manager ties credentials, sessions and tokens together.
type Manager struct {
	users    Authenticator
	sessions session.Store
	issuer   *Issuer
	logger   *logger.Logger
}

func NewManager(users Authenticator, sessions session.Store, issuer *Issuer, log *logger.Logger) *Manager {
	return &Manager{
		users:    users,
		sessions: sessions,
		issuer:   issuer,
		logger:   log.WithFields(zap.String("component", "auth")),
	}
}

// Login authenticates the user, starts a session and returns its token.
func (m *Manager) Login(ctx context.Context, email, password string) (string, *session.Session, error) {
	ownerID, err := m.users.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	sess := session.New(ownerID, email, m.issuer.TTL())
	if err := m.sessions.Save(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}
	token, err := m.issuer.Issue(ownerID, sess.ID, email, sess.ExpiresAt)
	if err != nil {
		return "", nil, err
	}
	m.logger.Info("session started", zap.String("session_id", sess.ID), zap.String("owner_id", ownerID))
	return token, sess, nil
}

// Validate checks the token and that its session is still alive.
func (m *Manager) Validate(ctx context.Context, token string) (*session.Session, error) {
	claims, err := m.issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := m.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return sess, nil
}

// Logout ends a session. Tokens issued for it stop validating.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.logger.Info("session ended", zap.String("session_id", sessionID))
	return nil
}
