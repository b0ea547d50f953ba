package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAuthenticated is the role the hosted backend puts in tokens of
// signed-in users. Anonymous sessions carry "anon".
const RoleAuthenticated = "authenticated"

var (
	ErrAnonymous    = errors.New("anonymous session")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the access token claims issued by the hosted backend.
// UserMetadata holds what the user entered at sign-up.
type Claims struct {
	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"`
	IsAnonymous  bool           `json:"is_anonymous,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string) *JWT {
	return &JWT{
		secret: []byte(secret),
		ttl:    time.Hour,
	}
}

// WithTTL returns a copy of j whose generated tokens live for ttl.
func (j *JWT) WithTTL(ttl time.Duration) *JWT {
	return &JWT{secret: j.secret, ttl: ttl}
}

// Generate mints an HS256 access token for userID, shaped like the ones the
// hosted backend issues. Used by the admin CLI and tests.
func (j *JWT) Generate(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Validate checks signature and expiry and returns the claims of a signed-in
// user. Anonymous sessions and tokens whose subject is not a UUID are rejected.
func (j *JWT) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.IsAnonymous || (claims.Role != "" && claims.Role != RoleAuthenticated) {
		return nil, ErrAnonymous
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return claims, nil
}
