package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
)

const ginSessionKey = "taskboard.session"

type sessionCtxKey struct{}

// ContextWithSession stores sess in ctx.
func ContextWithSession(ctx context.Context, sess *session.Session) context.Context {
	ctx = context.WithValue(ctx, sessionCtxKey{}, sess)
	return context.WithValue(ctx, logger.SessionIDKey, sess.ID)
}

// SessionFromContext returns the session stored by ContextWithSession.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// SpanAttributes returns the session and owner ids carried by ctx, or nil
// for anonymous requests.
func SpanAttributes(ctx context.Context) []attribute.KeyValue {
	sess, ok := SessionFromContext(ctx)
	if !ok {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("session.id", sess.ID),
		attribute.String("owner.id", sess.OwnerID),
	}
}

// SessionFrom returns the session attached by RequireSession.
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(ginSessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok
}

// RequireSession rejects requests without a valid session token. The token
// comes from the Authorization header or, for WebSocket upgrades that cannot
// set headers, the token query parameter.
func RequireSession(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		sess, err := m.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		c.Set(ginSessionKey, sess)
		c.Request = c.Request.WithContext(ContextWithSession(c.Request.Context(), sess))
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
