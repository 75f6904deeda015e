package handler

import (
	"net/http"
	"strings"

	"strangerchat/backend/internal/identity"

	"github.com/gin-gonic/gin"
)

// GetAnonID issues a session token. A client presenting a still valid token
// keeps its session id and gets a refreshed token.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID, err := h.Issuer.Parse(bearerToken(c))
	if err != nil {
		anonID = identity.NewSessionID()
	}

	token, err := h.Issuer.Issue(anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}

// sessionID extracts and validates the token from the "token" query parameter
// (browsers cannot set headers on WebSocket or beacon requests) or the
// Authorization header.
func (h *Handler) sessionID(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	return h.Issuer.Parse(token)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}
