package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned when a token fails validation.
var ErrInvalidToken = errors.New("invalid session token")

// TokenIssuer signs and validates HS256 session tokens. An empty secret
// disables authentication entirely (development mode).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer with the given shared secret. ttl
// bounds how long issued tokens stay valid.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the validity window of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Enabled reports whether token validation is active.
func (i *TokenIssuer) Enabled() bool {
	return len(i.secret) > 0
}

// Issue signs a token bound to sessionID. When sessionID is empty the
// token is valid for any session.
func (i *TokenIssuer) Issue(sessionID string) (string, error) {
	if !i.Enabled() {
		return "", errors.New("token issuance disabled: no secret configured")
	}

	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses tokenString and checks it against sessionID. Tokens
// issued without a session binding pass for any session.
func (i *TokenIssuer) Validate(tokenString, sessionID string) (*SessionClaims, error) {
	if !i.Enabled() {
		return &SessionClaims{SessionID: sessionID}, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID != "" && claims.SessionID != sessionID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
