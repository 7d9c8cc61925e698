package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dashgate/internal/models"
	"dashgate/internal/password"
	"dashgate/internal/repositories"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventPublisher receives audit events for registrations and login attempts.
type EventPublisher interface {
	PublishAuthEvent(event models.AuthEvent) error
}

// Session is the outcome of a login attempt. It is handed back to the caller
// and carried through its request context; the service keeps no session state.
type Session struct {
	Username        string    `json:"username,omitempty"`
	Authenticated   bool      `json:"authenticated"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// AuthService registers users and verifies their credentials against the store.
type AuthService struct {
	userRepo  repositories.UserRepository
	hasher    password.Hasher
	publisher EventPublisher
	logger    log.FieldLogger

	// verified for unknown users so the work done matches a real check
	dummyDigest string
}

// NewAuthService creates a new AuthService. The publisher may be nil.
func NewAuthService(userRepo repositories.UserRepository, hasher password.Hasher, publisher EventPublisher, logger log.FieldLogger) (*AuthService, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy digest: %w", err)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AuthService{
		userRepo:    userRepo,
		hasher:      hasher,
		publisher:   publisher,
		logger:      logger,
		dummyDigest: dummy,
	}, nil
}

// Register hashes the password and stores a new user. It returns false with a
// nil error when the username is already taken; any error means the store or
// the hasher failed.
func (s *AuthService) Register(ctx context.Context, username, pwd string) (bool, error) {
	digest, err := s.hasher.Hash(pwd)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.Insert(ctx, username, digest); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUsername) {
			s.logger.WithField("username", username).Info("registration rejected: username already exists")
			return false, nil
		}
		return false, fmt.Errorf("failed to register user: %w", err)
	}

	s.logger.WithField("username", username).Info("user registered")
	s.publish(models.EventUserRegistered, username)
	return true, nil
}

// Authenticate reports whether the credentials match a stored user. Unknown
// users and wrong passwords both yield false with a nil error.
func (s *AuthService) Authenticate(ctx context.Context, username, pwd string) (bool, error) {
	user, err := s.userRepo.Lookup(ctx, username)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			return false, fmt.Errorf("failed to look up user: %w", err)
		}
		// Burn the same hashing cost as a real comparison.
		_, _ = s.hasher.Verify(s.dummyDigest, pwd)
		s.reject(username)
		return false, nil
	}

	ok, err := password.Verify(user.PasswordDigest, pwd)
	if err != nil {
		s.logger.WithField("username", username).WithError(err).Warn("stored digest could not be verified")
		s.reject(username)
		return false, nil
	}
	if !ok {
		s.reject(username)
		return false, nil
	}

	s.logger.WithField("username", username).Info("user authenticated")
	s.publish(models.EventUserAuthenticated, username)
	return true, nil
}

// Login authenticates and wraps the result in a Session. Bad credentials give
// an anonymous session; only storage failures return an error.
func (s *AuthService) Login(ctx context.Context, username, pwd string) (*Session, error) {
	ok, err := s.Authenticate(ctx, username, pwd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Session{}, nil
	}
	return &Session{
		Username:        username,
		Authenticated:   true,
		AuthenticatedAt: time.Now().UTC(),
	}, nil
}

func (s *AuthService) reject(username string) {
	s.logger.WithField("username", username).Info("authentication failed")
	s.publish(models.EventUserRejected, username)
}

func (s *AuthService) publish(eventType, username string) {
	if s.publisher == nil {
		return
	}
	event := models.AuthEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Username:   username,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishAuthEvent(event); err != nil {
		s.logger.WithField("event", eventType).WithError(err).Warn("failed to publish auth event")
	}
}
