package application

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	issuer := NewTokenIssuer(testSecretKey, time.Hour, clock.Now)

	token, expiresAt, err := issuer.Issue("AUR (9807AUR)", RoleMember)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), expiresAt)

	principal, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{Label: "AUR (9807AUR)", Role: RoleMember, ExpiresAt: expiresAt}, principal)
}

func TestTokenIssuer_Rejections(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	issuer := NewTokenIssuer(testSecretKey, time.Hour, clock.Now)
	token, _, err := issuer.Issue("AUR (9807AUR)", RoleMember)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer(testSecretKey, time.Hour, func() time.Time { return clock.Now().Add(2 * time.Hour) })
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenIssuer("another-secret-key-0000", time.Hour, clock.Now)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		_, err = issuer.Parse("")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("missing role", func(t *testing.T) {
		claims := SessionClaims{
			Label: "someone",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecretKey))
		require.NoError(t, err)
		_, err = issuer.Parse(signed)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := SessionClaims{
			Label: "someone", Role: RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour))},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecretKey))
		require.NoError(t, err)
		_, err = issuer.Parse(signed)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}
