package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSigner_RoundTrip(t *testing.T) {
	signer, err := NewStateSigner([]byte("secret"), time.Minute)
	require.NoError(t, err)

	first, err := signer.Sign("github")
	require.NoError(t, err)
	second, err := signer.Sign("github")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each state carries a fresh nonce")

	claims, err := signer.Verify(first)
	require.NoError(t, err)
	assert.Equal(t, "github", claims.RegistrationID)
	assert.Equal(t, stateIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestStateSigner_Rejects(t *testing.T) {
	signer, err := NewStateSigner([]byte("secret"), time.Minute)
	require.NoError(t, err)
	valid, err := signer.Sign("github")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewStateSigner([]byte("other"), time.Minute)
		require.NoError(t, err)
		_, err = other.Verify(valid)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := NewStateSigner([]byte("secret"), time.Minute)
		require.NoError(t, err)
		expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := expired.Sign("github")
		require.NoError(t, err)
		_, err = signer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, StateClaims{RegistrationID: "github"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = signer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestNewStateSigner_RequiresSecret(t *testing.T) {
	_, err := NewStateSigner(nil, time.Minute)
	assert.Error(t, err)

	signer, err := NewStateSigner([]byte("s"), 0)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, signer.ttl)
}
