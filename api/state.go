package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "oauthreg"

// ErrInvalidState is returned for state tokens that fail verification
var ErrInvalidState = errors.New("invalid authorization state")

// StateClaims binds an authorization request to the provider it was sent to
type StateClaims struct {
	RegistrationID string `json:"rid"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies HS256-signed OAuth2 state parameters
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer; secret must be non-empty
func NewStateSigner(secret []byte, ttl time.Duration) (*StateSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("state secret is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Sign returns a state token for registrationID with a fresh nonce
func (s *StateSigner) Sign(registrationID string) (string, error) {
	now := s.now()
	claims := StateClaims{
		RegistrationID: registrationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of a state token
func (s *StateSigner) Verify(state string) (*StateClaims, error) {
	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.RegistrationID == "" {
		return nil, fmt.Errorf("%w: missing registration id", ErrInvalidState)
	}
	return claims, nil
}
