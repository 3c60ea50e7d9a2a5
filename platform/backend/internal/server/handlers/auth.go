package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rummy-platform/backend/internal/auth"
	"rummy-platform/backend/internal/middleware"
	"rummy-platform/backend/internal/models"
	"rummy-platform/backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// HandleIssueToken exchanges the shared client secret for a bearer token
func HandleIssueToken(c *gin.Context, authService *auth.Service) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := validation.ValidateClientID(req.ClientID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := authService.Authenticate(req.ClientID, req.ClientSecret)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// AuthMiddleware validates bearer tokens and sets the client id in context
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		clientID, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(middleware.ClientIDKey, clientID)
		c.Next()
	}
}
