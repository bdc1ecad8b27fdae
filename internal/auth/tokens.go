package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cristalhq/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when a TokenManager is built with a non-positive TTL.
const DefaultTokenTTL = 24 * time.Hour

// Token is a signed session token handed to a client after login.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	signer   jwt.Signer
	verifier jwt.Verifier
	issuer   string
	ttl      time.Duration

	// NowFunc overrides the clock; nil means time.Now.
	NowFunc func() time.Time
}

// NewTokenManager builds a TokenManager signing with secret.
func NewTokenManager(secret []byte, issuer string, ttl time.Duration) (*TokenManager, error) {
	signer, err := jwt.NewSignerHS(jwt.HS256, secret)
	if err != nil {
		return nil, fmt.Errorf("create token signer: %w", err)
	}
	verifier, err := jwt.NewVerifierHS(jwt.HS256, secret)
	if err != nil {
		return nil, fmt.Errorf("create token verifier: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{signer: signer, verifier: verifier, issuer: issuer, ttl: ttl}, nil
}

func (m *TokenManager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Issue signs a token whose subject is userID.
func (m *TokenManager) Issue(userID string) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("user id must be provided")
	}

	now := m.now()
	expiresAt := jwt.NewNumericDate(now.Add(m.ttl))
	token, err := jwt.NewBuilder(m.signer).Build(&jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{Value: token.String(), ExpiresAt: expiresAt.Time.UTC()}, nil
}

// Verify checks the signature, issuer and expiry of raw and returns the
// principal it names.
func (m *TokenManager) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}

	var claims jwt.RegisteredClaims
	if err := jwt.ParseClaims([]byte(raw), m.verifier, &claims); err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Principal{}, ErrInvalidToken
	}
	if m.issuer != "" && !claims.IsIssuer(m.issuer) {
		return Principal{}, ErrInvalidToken
	}
	if !claims.IsValidExpiresAt(m.now()) {
		return Principal{}, ErrTokenExpired
	}

	return Principal{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// VerifyHeader extracts the token from an Authorization header value of the
// form "Bearer <token>" and verifies it.
func (m *TokenManager) VerifyHeader(header string) (Principal, error) {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 0:
		return Principal{}, ErrMissingToken
	case !strings.EqualFold(fields[0], "Bearer"):
		return Principal{}, ErrInvalidToken
	case len(fields) == 1:
		return Principal{}, ErrMissingToken
	case len(fields) > 2:
		return Principal{}, ErrInvalidToken
	}
	return m.Verify(fields[1])
}
