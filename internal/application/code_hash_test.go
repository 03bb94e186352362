package application

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeHasher_SHA256MatchesSaltedDigest(t *testing.T) {
	t.Parallel()

	hasher, err := NewCodeHasher(testSecretKey, "")
	require.NoError(t, err)
	assert.Equal(t, HashSchemeSHA256, hasher.Scheme())

	sum := sha256.Sum256([]byte("9127SAM" + testSecretKey[:16]))
	assert.Equal(t, hex.EncodeToString(sum[:]), hasher.Hash("9127SAM"))

	ok, err := hasher.Verify(hasher.Hash("9127SAM"), "9127SAM")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify(hasher.Hash("9127SAM"), "9127SAN")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeHasher_Argon2idIsDeterministic(t *testing.T) {
	t.Parallel()

	hasher, err := NewCodeHasher(testSecretKey, HashSchemeArgon2id)
	require.NoError(t, err)

	first := hasher.Hash("9553AJB")
	assert.Equal(t, first, hasher.Hash("9553AJB"))

	ok, err := hasher.Verify(first, "9553AJB")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify(first, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = hasher.Verify("$argon2id$v=19$broken", "9553AJB")
	assert.ErrorIs(t, err, ErrInvalidCodeHash)
}

func TestNewCodeHasher_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCodeHasher("short", "")
	assert.Error(t, err)

	_, err = NewCodeHasher(testSecretKey, "md5")
	assert.Error(t, err)
}
