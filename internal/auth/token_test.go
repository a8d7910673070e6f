package auth

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret-123", time.Hour)

	token, err := v.Issue(Actor{ID: "priest-1", Role: RolePriest})
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "priest-1", actor.ID)
	assert.Equal(t, RolePriest, actor.Role)
	assert.True(t, actor.Is(RoleBishop, RolePriest))
	assert.False(t, actor.Is(RoleFaithful))
}

func TestVerifier_RejectsForeignSignature(t *testing.T) {
	token, err := NewVerifier("other-secret", time.Hour).Issue(Actor{ID: "f1", Role: RoleFaithful})
	require.NoError(t, err)

	_, err = NewVerifier("test-secret-123", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsExpired(t *testing.T) {
	secret := "test-secret-123"
	claims := Claims{
		Role: string(RoleFaithful),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "f1",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = NewVerifier(secret, time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_RejectsMissingSubject(t *testing.T) {
	v := NewVerifier("s", time.Hour)
	token, err := v.Issue(Actor{Role: RoleFaithful})
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	_, err = BearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{ID: "f1", Role: RoleFaithful})
	a, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "f1", a.ID)
}
