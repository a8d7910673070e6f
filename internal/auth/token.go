// Package auth verifies the actor tokens issued by the identity service and
// carries the resulting actor through request contexts.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RolePriest   Role = "priest"
	RoleFaithful Role = "faithful"
	RoleBishop   Role = "bishop"
	RoleAdmin    Role = "admin"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type Claims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

type Verifier struct {
	secret []byte
	ttl    time.Duration
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Verifier{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the actor. Production tokens come from the
// identity service; this is used by local tooling and tests.
func (v *Verifier) Issue(actor Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

func (v *Verifier) Verify(tokenStr string) (Actor, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return Actor{}, ErrMissingToken
	}
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return v.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Actor{}, ErrInvalidToken
	}
	return Actor{ID: claims.Subject, Role: Role(claims.Role)}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
