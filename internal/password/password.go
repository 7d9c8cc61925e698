// Package password derives and verifies password digests.
//
// New digests are always salted: Argon2id (PHC string format) by default, or
// bcrypt. Unsalted SHA-256 hex digests written by older deployments can still
// be verified but are never produced.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// Supported algorithm names for new digests.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// ErrUnsupportedDigest is returned when a stored digest has an unknown format.
var ErrUnsupportedDigest = errors.New("unsupported password digest format")

// Hasher derives digests for new passwords and checks passwords against them.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) (bool, error)
}

// Options tunes the hashers built by New. Zero values select the defaults.
type Options struct {
	Argon2id   Argon2idParams
	BcryptCost int
}

// New returns the Hasher for the named algorithm. An empty name selects Argon2id.
func New(algorithm string, opts Options) (Hasher, error) {
	switch strings.ToLower(algorithm) {
	case "", AlgorithmArgon2id:
		return NewArgon2idHasher(opts.Argon2id), nil
	case AlgorithmBcrypt:
		return NewBcryptHasher(opts.BcryptCost), nil
	default:
		return nil, errors.Errorf("unsupported password hash algorithm '%s'", algorithm)
	}
}

// Verify checks password against a digest of any supported format.
func Verify(digest, password string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, argon2idPrefix):
		return verifyArgon2id(digest, password)
	case isBcryptDigest(digest):
		return verifyBcrypt(digest, password)
	case isLegacyDigest(digest):
		return verifyLegacy(digest, password), nil
	default:
		return false, ErrUnsupportedDigest
	}
}

// legacy digests are lowercase hex SHA-256 of the raw password
func isLegacyDigest(digest string) bool {
	if len(digest) != hex.EncodedLen(sha256.Size) {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

func verifyLegacy(digest, password string) bool {
	sum := sha256.Sum256([]byte(password))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(digest))) == 1
}
