package api

import "time"

// TokenRequest represents the request payload for session token issuance.
type TokenRequest struct {
	SessionID string `json:"session_id"`
}

// TokenResponse represents the response payload for session token issuance.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
