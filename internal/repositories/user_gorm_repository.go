package repositories

import (
	"context"
	"errors"
	"time"

	"dashgate/internal/models"

	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
// The db must be opened with TranslateError enabled (see Connect) so that
// unique violations surface as gorm.ErrDuplicatedKey on every dialect.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// mysqlTableOptions makes username comparisons exact: case sensitive and
// without trailing-space padding.
const mysqlTableOptions = "DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_0900_bin"

// Initialize migrates the users table. A table created by the earlier
// deployment, with digests in a "password" column, is upgraded in place.
func (r *GORMUserRepository) Initialize(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if db.Dialector.Name() == string(DriverMySQL) {
		db = db.Set("gorm:table_options", mysqlTableOptions)
	}

	migrator := db.Migrator()
	legacy := migrator.HasColumn(&models.User{}, "password") && !migrator.HasColumn(&models.User{}, "password_digest")
	if legacy {
		if err := migrator.RenameColumn(&models.User{}, "password", "password_digest"); err != nil {
			return storageError("failed to rename legacy password column", err)
		}
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		return storageError("failed to migrate users table", err)
	}

	if legacy {
		err := db.Model(&models.User{}).
			Where("created_at IS NULL").
			Update("created_at", time.Now().UTC()).Error
		if err != nil {
			return storageError("failed to backfill created_at", err)
		}
	}
	return nil
}

// Insert creates a new user record with a single INSERT and lets the primary
// key reject duplicates.
func (r *GORMUserRepository) Insert(ctx context.Context, username, digest string) error {
	if err := checkUsername(username); err != nil {
		return err
	}

	user := models.User{Username: username, PasswordDigest: digest}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return storageError("failed to create user", err)
	}
	return nil
}

// Lookup retrieves a user by username. The match is exact even when the
// column collation is not, as on tables created before Initialize set one.
func (r *GORMUserRepository) Lookup(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageError("failed to get user", err)
	}
	if user.Username != username {
		return nil, ErrUserNotFound
	}
	return &user, nil
}
