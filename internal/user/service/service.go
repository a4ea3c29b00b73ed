package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	"github.com/kandev/taskboard/internal/user/models"
	"github.com/kandev/taskboard/internal/user/store"
)

const minPasswordLength = 6

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("validation failed")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Service struct {
	repo     store.Repository
	eventBus bus.EventBus
	logger   *logger.Logger
	cost     int
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

func NewService(repo store.Repository, eventBus bus.EventBus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   log.WithFields(zap.String("component", "user-service")),
		cost:     bcrypt.DefaultCost,
	}
}

// ValidateCredentials checks the email format and password length.
func ValidateCredentials(email, password string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("%w: email is not valid", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

// Register creates an account. The password is stored as a bcrypt hash.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := ValidateCredentials(email, req.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	s.publishRegistered(ctx, user)
	return user, nil
}

// Authenticate returns the owner id for valid credentials. Unknown emails
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return "", err
	}
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return user.ID, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) publishRegistered(ctx context.Context, user *models.User) {
	if s.eventBus == nil {
		return
	}
	data := map[string]interface{}{
		"user_id":    user.ID,
		"created_at": user.CreatedAt.Format(time.RFC3339),
	}
	if err := s.eventBus.Publish(ctx, events.UserRegistered, bus.NewEvent(events.UserRegistered, "user-service", data)); err != nil {
		s.logger.Error("failed to publish user registered event", zap.Error(err))
	}
}
