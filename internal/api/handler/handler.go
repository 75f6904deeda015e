package handler

import (
	"net/http"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler містить посилання на ChatHub
type Handler struct {
	Hub     *chathub.ManagerService
	Issuer  *identity.Issuer
	Counter *chathub.OnlineCounter

	upgrader websocket.Upgrader
}

// NewHandler builds the HTTP surface. An empty origins list, or one containing
// "*", accepts WebSocket upgrades from any origin.
func NewHandler(hub *chathub.ManagerService, issuer *identity.Issuer, counter *chathub.OnlineCounter, origins []string) *Handler {
	return &Handler{
		Hub:     hub,
		Issuer:  issuer,
		Counter: counter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/online", h.GetOnlineCount)
	r.POST("/presence/leave", h.LeavePresence)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
