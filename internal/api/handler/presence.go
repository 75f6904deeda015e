package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetOnlineCount returns the cached number of live sessions.
func (h *Handler) GetOnlineCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.Counter.Value()})
}

// LeavePresence is the page-unload beacon. It ends the session best-effort and
// never fails loudly: the browser does not read the response.
func (h *Handler) LeavePresence(c *gin.Context) {
	anonID, err := h.sessionID(c)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	h.Hub.End(c.Request.Context(), anonID)
	c.Status(http.StatusNoContent)
}
