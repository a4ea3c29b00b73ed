package dto

import (
	"time"

	"github.com/kandev/taskboard/internal/session"
	"github.com/kandev/taskboard/internal/user/models"
)

type UserDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDTO struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserResponse struct {
	User UserDTO `json:"user"`
}

// AuthResponse is returned by signup and login. The token authenticates
// both HTTP requests and the WebSocket upgrade.
type AuthResponse struct {
	Token   string     `json:"token"`
	User    UserDTO    `json:"user"`
	Session SessionDTO `json:"session"`
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func FromUser(user *models.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}

func FromSession(sess *session.Session) SessionDTO {
	return SessionDTO{ID: sess.ID, ExpiresAt: sess.ExpiresAt}
}
