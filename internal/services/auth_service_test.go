package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"dashgate/internal/models"
	"dashgate/internal/password"
	"dashgate/internal/repositories"
	"dashgate/internal/services"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUserRepository) Insert(ctx context.Context, username, digest string) error {
	args := m.Called(ctx, username, digest)
	return args.Error(0)
}

func (m *MockUserRepository) Lookup(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishAuthEvent(event models.AuthEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testHasher() password.Hasher {
	return password.NewArgon2idHasher(password.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1})
}

func newService(t *testing.T, repo repositories.UserRepository, publisher services.EventPublisher) *services.AuthService {
	t.Helper()
	svc, err := services.NewAuthService(repo, testHasher(), publisher, quietLogger())
	require.NoError(t, err)
	return svc
}

func eventOfType(eventType, username string) interface{} {
	return mock.MatchedBy(func(e models.AuthEvent) bool {
		return e.Type == eventType && e.Username == username && e.ID != ""
	})
}

func TestAuthService_Scenario(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repositories.NewMemoryUserRepository(), nil)

	ok, err := svc.Register(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Register(ctx, "alice", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authenticate(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Authenticate(ctx, "bob", "s3cret")
	require.NoError(t, err)
	assert.False(t, ok)
}

// stores returns fresh credential stores of every kind.
func stores(t *testing.T) map[string]repositories.UserRepository {
	t.Helper()
	db, err := repositories.Connect(repositories.DatabaseConfig{
		Driver: repositories.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "users.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	gormRepo := repositories.NewGORMUserRepository(db)
	require.NoError(t, gormRepo.Initialize(context.Background()))

	return map[string]repositories.UserRepository{
		"gorm":   gormRepo,
		"memory": repositories.NewMemoryUserRepository(),
	}
}

func TestAuthService_Properties(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(t, repo, nil)

			credentials := []struct{ username, password string }{
				{"alice", "s3cret"},
				{"bob", "hunter2"},
				{"carol", "s3cret"},
				{"", ""},
				{"dave", "pässwörd with spaces"},
			}
			for _, c := range credentials {
				ok, err := svc.Register(ctx, c.username, c.password)
				require.NoError(t, err)
				require.True(t, ok, c.username)
			}

			for _, c := range credentials {
				// round-trip
				ok, err := svc.Authenticate(ctx, c.username, c.password)
				assert.NoError(t, err)
				assert.True(t, ok, c.username)

				// negative match
				ok, err = svc.Authenticate(ctx, c.username, c.password+"x")
				assert.NoError(t, err)
				assert.False(t, ok, c.username)

				// uniqueness regardless of password
				ok, err = svc.Register(ctx, c.username, "another")
				assert.NoError(t, err)
				assert.False(t, ok, c.username)

				user, err := repo.Lookup(ctx, c.username)
				require.NoError(t, err)
				if c.password != "" {
					assert.NotEqual(t, c.password, user.PasswordDigest)
					assert.NotContains(t, user.PasswordDigest, c.password)
				}
			}

			alice, err := repo.Lookup(ctx, "alice")
			require.NoError(t, err)
			carol, err := repo.Lookup(ctx, "carol")
			require.NoError(t, err)
			assert.NotEqual(t, alice.PasswordDigest, carol.PasswordDigest, "same password must be salted differently")

			for _, unknown := range []string{"mallory", "ALICE", "alice "} {
				ok, err := svc.Authenticate(ctx, unknown, "s3cret")
				assert.NoError(t, err)
				assert.False(t, ok, unknown)
			}

			// names differing only in case or padding are distinct users
			ok, err := svc.Register(ctx, "Alice", "different")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = svc.Authenticate(ctx, "alice", "s3cret")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestAuthService_RegisterUsernameTooLong(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, repo, nil)
			ok, err := svc.Register(context.Background(), strings.Repeat("x", 101), "s3cret")
			assert.False(t, ok)
			assert.ErrorIs(t, err, repositories.ErrUsernameTooLong)
			assert.NotErrorIs(t, err, repositories.ErrStorageUnavailable)
		})
	}
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	mockPublisher := new(MockEventPublisher)
	svc := newService(t, mockRepo, mockPublisher)

	// Test successful registration
	mockRepo.On("Insert", ctx, "testuser", mock.MatchedBy(func(digest string) bool {
		ok, err := password.Verify(digest, "password123")
		return err == nil && ok
	})).Return(nil).Once()
	mockPublisher.On("PublishAuthEvent", eventOfType(models.EventUserRegistered, "testuser")).Return(nil).Once()

	ok, err := svc.Register(ctx, "testuser", "password123")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Test username already taken
	mockRepo.On("Insert", ctx, "testuser", mock.AnythingOfType("string")).Return(repositories.ErrDuplicateUsername).Once()
	ok, err = svc.Register(ctx, "testuser", "password123")
	assert.NoError(t, err)
	assert.False(t, ok)

	// Test storage failure is surfaced, not collapsed into false
	storageErr := fmt.Errorf("failed to create user: %w: %w", repositories.ErrStorageUnavailable, errors.New("disk full"))
	mockRepo.On("Insert", ctx, "other", mock.AnythingOfType("string")).Return(storageErr).Once()
	ok, err = svc.Register(ctx, "other", "password123")
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)
	assert.False(t, ok)

	mockRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	mockPublisher := new(MockEventPublisher)
	svc := newService(t, mockRepo, mockPublisher)

	digest, err := testHasher().Hash("password123")
	require.NoError(t, err)
	user := &models.User{Username: "testuser", PasswordDigest: digest}

	// Test successful login
	mockRepo.On("Lookup", ctx, "testuser").Return(user, nil).Twice()
	mockPublisher.On("PublishAuthEvent", eventOfType(models.EventUserAuthenticated, "testuser")).Return(nil).Once()
	ok, err := svc.Authenticate(ctx, "testuser", "password123")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Test wrong password
	mockPublisher.On("PublishAuthEvent", eventOfType(models.EventUserRejected, "testuser")).Return(nil).Once()
	ok, err = svc.Authenticate(ctx, "testuser", "wrongpassword")
	assert.NoError(t, err)
	assert.False(t, ok)

	// Test unknown user
	mockRepo.On("Lookup", ctx, "nonexistentuser").Return(nil, repositories.ErrUserNotFound).Once()
	mockPublisher.On("PublishAuthEvent", eventOfType(models.EventUserRejected, "nonexistentuser")).Return(nil).Once()
	ok, err = svc.Authenticate(ctx, "nonexistentuser", "password123")
	assert.NoError(t, err)
	assert.False(t, ok)

	// Test storage failure
	storageErr := fmt.Errorf("failed to get user: %w: %w", repositories.ErrStorageUnavailable, errors.New("connection refused"))
	mockRepo.On("Lookup", ctx, "testuser").Return(nil, storageErr).Once()
	ok, err = svc.Authenticate(ctx, "testuser", "password123")
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)
	assert.False(t, ok)

	mockRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestAuthService_AuthenticateLegacyDigest(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	svc := newService(t, mockRepo, nil)

	// sha256("s3cret") as stored by older deployments
	legacy := &models.User{Username: "alice", PasswordDigest: "1ec1c26b50d5d3c58d9583181af8076655fe00756bf7285940ba3670f99fcba0"}
	mockRepo.On("Lookup", ctx, "alice").Return(legacy, nil)

	ok, err := svc.Authenticate(ctx, "alice", "s3cret")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.NoError(t, err)
	assert.False(t, ok)

	// a corrupt digest is a failed login, not an error
	mockRepo.On("Lookup", ctx, "broken").Return(&models.User{Username: "broken", PasswordDigest: "garbage"}, nil)
	ok, err = svc.Authenticate(ctx, "broken", "anything")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthService_PublishFailureDoesNotChangeResult(t *testing.T) {
	ctx := context.Background()
	mockPublisher := new(MockEventPublisher)
	mockPublisher.On("PublishAuthEvent", mock.Anything).Return(errors.New("broker down"))
	svc := newService(t, repositories.NewMemoryUserRepository(), mockPublisher)

	ok, err := svc.Register(ctx, "alice", "s3cret")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authenticate(ctx, "alice", "s3cret")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, repositories.NewMemoryUserRepository(), nil)

	_, err := svc.Register(ctx, "alice", "s3cret")
	require.NoError(t, err)

	session, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, session.Authenticated)
	assert.Equal(t, "alice", session.Username)
	assert.False(t, session.AuthenticatedAt.IsZero())

	session, err = svc.Login(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, session.Authenticated)
	assert.Empty(t, session.Username)
}
