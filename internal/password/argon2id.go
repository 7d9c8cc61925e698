package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const argon2idPrefix = "$argon2id$"

// Argon2idParams configures Argon2id hashing.
type Argon2idParams struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLen      uint32
	SaltLen     uint32
}

// DefaultArgon2idParams returns the parameters used when none are configured.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 1, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32, SaltLen: 16}
}

// Argon2idHasher produces PHC-formatted Argon2id digests with a random salt per call.
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates an Argon2idHasher. Zero fields fall back to the defaults.
func NewArgon2idHasher(p Argon2idParams) *Argon2idHasher {
	def := DefaultArgon2idParams()
	if p.Time == 0 {
		p.Time = def.Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = def.MemoryKiB
	}
	if p.Parallelism == 0 {
		p.Parallelism = def.Parallelism
	}
	if p.KeyLen == 0 {
		p.KeyLen = def.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = def.SaltLen
	}
	return &Argon2idHasher{params: p}
}

// Params returns the effective parameters.
func (h *Argon2idHasher) Params() Argon2idParams {
	return h.params
}

// Hash returns a digest in the form $argon2id$v=19$m=65536,t=1,p=4$<saltB64>$<hashB64>.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	dk := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)
	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(dk)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s", argon2idPrefix, argon2.Version, p.MemoryKiB, p.Time, p.Parallelism, saltB64, hashB64), nil
}

// Verify checks password against an Argon2id digest. The parameters encoded in
// the digest are used, not the hasher's own.
func (h *Argon2idHasher) Verify(digest, password string) (bool, error) {
	return verifyArgon2id(digest, password)
}

func verifyArgon2id(digest, password string) (bool, error) {
	params, salt, hash, err := parseArgon2id(digest)
	if err != nil {
		return false, err
	}
	dk := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(dk, hash) == 1, nil
}

// parseArgon2id splits a PHC-formatted argon2id digest into parameters, salt and hash bytes.
func parseArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	var out Argon2idParams
	if !strings.HasPrefix(encoded, argon2idPrefix) {
		return out, nil, nil, ErrUnsupportedDigest
	}
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return out, nil, nil, errors.Errorf("invalid argon2id digest format")
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return out, nil, nil, errors.Errorf("unsupported argon2 version '%s'", parts[2])
	}
	for _, kv := range strings.Split(parts[3], ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return out, nil, nil, errors.Errorf("invalid argon2id parameter '%s'", kv)
		}
		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return out, nil, nil, errors.Wrap(err, "invalid argon2id memory")
			}
			out.MemoryKiB = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return out, nil, nil, errors.Wrap(err, "invalid argon2id time")
			}
			out.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return out, nil, nil, errors.Wrap(err, "invalid argon2id parallelism")
			}
			out.Parallelism = uint8(v)
		}
	}
	if out.Time == 0 || out.MemoryKiB == 0 || out.Parallelism == 0 {
		return out, nil, nil, errors.Errorf("incomplete argon2id parameters")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return out, nil, nil, errors.Wrap(err, "invalid argon2id salt")
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return out, nil, nil, errors.Wrap(err, "invalid argon2id hash")
	}
	if len(hash) == 0 {
		return out, nil, nil, errors.Errorf("empty argon2id hash")
	}
	out.SaltLen = uint32(len(salt))
	out.KeyLen = uint32(len(hash))
	return out, salt, hash, nil
}
