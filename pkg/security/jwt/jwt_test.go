package jwt

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/utils/errors"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSignAndVerify(t *testing.T) {
	j, err := New(WithKey(testKey))
	require.NoError(t, err)

	token, err := j.Sign(context.Background(), "demo_user")
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)
	assert.NotEmpty(t, token.AccessToken)

	claims, err := j.Verify(context.Background(), token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "demo_user", claims.Subject)
	assert.Equal(t, "docqa", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, claims.IssuedAt.Add(30*time.Minute), claims.ExpiresAt, time.Second)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New(WithKey("short"))
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	signer, err := New(WithKey(testKey), WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	token, err := signer.Sign(context.Background(), "u")
	require.NoError(t, err)

	verifier, err := New(WithKey(testKey))
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), token.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTokenExpired.Code))
}

func TestVerifyWrongKeyAndGarbage(t *testing.T) {
	a, err := New(WithKey(testKey))
	require.NoError(t, err)
	b, err := New(WithKey("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	token, err := a.Sign(context.Background(), "u")
	require.NoError(t, err)

	_, err = b.Verify(context.Background(), token.AccessToken)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidToken.Code))

	_, err = a.Verify(context.Background(), "not.a.token")
	assert.True(t, errors.IsCode(err, errors.ErrInvalidToken.Code))

	_, err = a.Verify(context.Background(), "")
	assert.True(t, errors.IsCode(err, errors.ErrInvalidToken.Code))
}

func TestVerifyRejectsOtherAlgorithm(t *testing.T) {
	j, err := New(WithKey(testKey))
	require.NoError(t, err)

	claims := gojwt.RegisteredClaims{
		Subject:   "u",
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = j.Verify(context.Background(), signed)
	assert.Error(t, err)
}

func TestRevoke(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	j, err := New(WithKey(testKey), WithStore(store))
	require.NoError(t, err)

	token, err := j.Sign(context.Background(), "u")
	require.NoError(t, err)
	require.NoError(t, j.Revoke(context.Background(), token.AccessToken))
	assert.Equal(t, 1, store.Size())

	_, err = j.Verify(context.Background(), token.AccessToken)
	assert.True(t, errors.IsCode(err, errors.ErrTokenRevoked.Code))

	// revoking twice is a no-op
	assert.NoError(t, j.Revoke(context.Background(), token.AccessToken))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("s3cret", "not-a-hash"))
}
