package application

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Hash schemes for access codes.
const (
	HashSchemeSHA256   = "sha256"
	HashSchemeArgon2id = "argon2id"
)

// ErrInvalidCodeHash is returned for stored hashes that cannot be parsed.
var ErrInvalidCodeHash = errors.New("invalid access code hash format")

// Argon2idParams tunes the argon2id scheme.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	KeyLength:   32,
}

// CodeHasher derives deterministic hashes of access codes with a fixed salt
// taken from the first 16 bytes of the secret key. Determinism lets login
// compare one submitted code against every registered hash.
type CodeHasher struct {
	scheme string
	salt   []byte
	params Argon2idParams
}

// NewCodeHasher builds a hasher for the scheme ("" means sha256).
func NewCodeHasher(secretKey, scheme string) (*CodeHasher, error) {
	if len(secretKey) < 16 {
		return nil, fmt.Errorf("secret key must be at least 16 bytes")
	}
	switch scheme {
	case "":
		scheme = HashSchemeSHA256
	case HashSchemeSHA256, HashSchemeArgon2id:
	default:
		return nil, fmt.Errorf("unsupported hash scheme %q", scheme)
	}
	return &CodeHasher{
		scheme: scheme,
		salt:   []byte(secretKey[:16]),
		params: DefaultArgon2idParams,
	}, nil
}

// Scheme reports the scheme used for new hashes.
func (h *CodeHasher) Scheme() string {
	return h.scheme
}

// Hash returns the stored form of code.
func (h *CodeHasher) Hash(code string) string {
	if h.scheme == HashSchemeArgon2id {
		return h.argon2idHash(code, h.params)
	}
	return h.sha256Hash(code)
}

// Verify compares code against a stored hash of either scheme in constant time.
func (h *CodeHasher) Verify(stored, code string) (bool, error) {
	if !strings.HasPrefix(stored, "$argon2id$") {
		expected := h.sha256Hash(code)
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(expected)) == 1, nil
	}

	parts := strings.Split(stored, "$")
	if len(parts) != 5 {
		return false, ErrInvalidCodeHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidCodeHash
	}
	if version != argon2.Version {
		return false, ErrInvalidCodeHash
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return false, ErrInvalidCodeHash
	}

	decoded, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidCodeHash
	}
	params.KeyLength = uint32(len(decoded))

	candidate := argon2.IDKey([]byte(code), h.salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(decoded, candidate) == 1, nil
}

func (h *CodeHasher) sha256Hash(code string) string {
	sum := sha256.Sum256(append([]byte(code), h.salt...))
	return hex.EncodeToString(sum[:])
}

func (h *CodeHasher) argon2idHash(code string, params Argon2idParams) string {
	key := argon2.IDKey([]byte(code), h.salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	// Format is $argon2id$v=19$m=...,t=...,p=...$hash; the salt is implied by the key.
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(key))
}
