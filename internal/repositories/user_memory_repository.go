package repositories

import (
	"context"
	"sync"
	"time"

	"dashgate/internal/models"
)

// MemoryUserRepository is an in-memory implementation of UserRepository.
type MemoryUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMemoryUserRepository creates a new instance of MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]models.User),
	}
}

// Initialize is a no-op; the map exists from construction.
func (r *MemoryUserRepository) Initialize(context.Context) error {
	return nil
}

// Insert adds a new user unless the username is taken.
func (r *MemoryUserRepository) Insert(_ context.Context, username, digest string) error {
	if err := checkUsername(username); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; ok {
		return ErrDuplicateUsername
	}
	r.users[username] = models.User{
		Username:       username,
		PasswordDigest: digest,
		CreatedAt:      time.Now(),
	}
	return nil
}

// Lookup returns a copy of the stored user.
func (r *MemoryUserRepository) Lookup(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
