package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const stateAudience = "guilddash-oauth-state"

// ErrInvalidState is returned for state values that are malformed, forged or expired.
var ErrInvalidState = errors.New("invalid or expired state")

// StateManager issues and verifies the OAuth state parameter. States are
// HS256-signed JWTs with a nonce and an expiry, so nothing is stored server-side.
type StateManager struct {
	key    []byte
	expiry time.Duration
	clock  clockwork.Clock
}

// NewStateManager creates a state manager signing with key.
func NewStateManager(key []byte, expiry time.Duration, clock clockwork.Clock) *StateManager {
	return &StateManager{
		key:    key,
		expiry: expiry,
		clock:  clock,
	}
}

// GenerateSigningKey returns 32 random bytes, used when no STATE_SIGNING_KEY is configured.
func GenerateSigningKey() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return b, nil
}

// GenerateState issues a fresh signed state.
func (sm *StateManager) GenerateState() (string, error) {
	now := sm.clock.Now()
	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sm.expiry)),
	}

	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}

	return state, nil
}

// ValidateState verifies the signature, audience and expiry of state.
func (sm *StateManager) ValidateState(state string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(token *jwt.Token) (any, error) { return sm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.clock.Now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	return nil
}
