package diagnostics

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires the progress-polling and WebSocket-broadcast endpoints
// onto a fresh gin.Engine (spec §7, "a thin live-progress surface").
func SetupRouter(hub *Hub) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "operational"})
	})
	r.GET("/progress", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"runs": hub.Snapshot()})
	})
	r.GET("/ws/progress", hub.Subscribe)

	return r
}
