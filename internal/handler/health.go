package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service and the number of polled feeds
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	feeds := 0
	if h.feeds != nil {
		feeds = len(h.feeds.Names())
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "feeds": feeds})
}
