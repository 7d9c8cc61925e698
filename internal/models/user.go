package models

import "time"

// MaxUsernameLength is the width of the username column, in characters.
const MaxUsernameLength = 100

// User is a stored credential record. The username is the primary key, so the
// database itself rejects a second record with the same name.
type User struct {
	Username       string    `json:"username" gorm:"primaryKey;type:varchar(100)"`
	PasswordDigest string    `json:"-" gorm:"column:password_digest;type:varchar(255);not null"` // Never serialized
	CreatedAt      time.Time `json:"created_at"`
}

// TableName pins the table name to "users".
func (User) TableName() string { return "users" }
