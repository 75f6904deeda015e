package handler

import (
	"log"
	"net/http"

	"strangerchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
)

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket
func (h *Handler) ServeWebSocket(c *gin.Context) {
	anonID, err := h.sessionID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		log.Printf("WARNING: WebSocket upgrade for %s failed: %v", anonID, err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, anonID)
	client.Run()
}
