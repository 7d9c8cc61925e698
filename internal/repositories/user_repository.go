package repositories

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"dashgate/internal/models"
)

var (
	// ErrDuplicateUsername is returned by Insert when the username is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrUserNotFound is returned by Lookup when no record exists for the username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTooLong is returned by Insert when the username does not fit the column.
	ErrUsernameTooLong = fmt.Errorf("username longer than %d characters", models.MaxUsernameLength)
	// ErrStorageUnavailable wraps every failure of the persistence layer itself.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// UserRepository is the credential store.
type UserRepository interface {
	// Initialize creates the users table if it does not exist. Safe to call repeatedly.
	Initialize(ctx context.Context) error
	// Insert atomically adds a record, failing with ErrDuplicateUsername if the username exists.
	Insert(ctx context.Context, username, digest string) error
	// Lookup returns the record for username or ErrUserNotFound.
	Lookup(ctx context.Context, username string) (*models.User, error)
}

func checkUsername(username string) error {
	if utf8.RuneCountInString(username) > models.MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
