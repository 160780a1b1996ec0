package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/internal/auth"
	"github.com/voxstream/voxstream/internal/server"
)

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, hub *server.Hub, issuer *auth.TokenIssuer, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voxstream",
		})
	})

	v1 := e.Group("/v1")

	v1.POST("/token", func(c echo.Context) error {
		return issueToken(c, issuer, logger)
	})

	v1.GET("/session", func(c echo.Context) error {
		return sessionWithAuth(hub, issuer, c, logger)
	})
}

// issueToken signs a session token. Only available when a JWT secret is
// configured.
func issueToken(c echo.Context, issuer *auth.TokenIssuer, logger *zap.Logger) error {
	if !issuer.Enabled() {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "auth_disabled",
			Message: "Token issuance is disabled: no secret configured",
		})
	}

	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	token, err := issuer.Issue(req.SessionID)
	if err != nil {
		logger.Error("Failed to issue session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(issuer.TTL()),
		SessionID: req.SessionID,
	})
}

// sessionWithAuth validates the session handshake and hands the request
// to the hub. session_id and token travel as query parameters because
// browser WebSocket clients cannot set headers.
func sessionWithAuth(hub *server.Hub, issuer *auth.TokenIssuer, c echo.Context, logger *zap.Logger) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		logger.Warn("Session connection rejected: missing session_id")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_session_id",
			Message: "session_id query parameter is required",
		})
	}

	if issuer.Enabled() {
		token := c.QueryParam("token")
		if token == "" {
			logger.Warn("Session connection rejected: missing token",
				zap.String("sessionID", sessionID))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "token query parameter is required",
			})
		}
		if _, err := issuer.Validate(token, sessionID); err != nil {
			logger.Warn("Session connection rejected: invalid token",
				zap.String("sessionID", sessionID),
				zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired session token",
			})
		}
	}

	return hub.HandleSession(c, sessionID)
}
