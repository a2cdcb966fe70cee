package vapi

import (
	"net/http"

	"barberline/internal/metrics"

	"github.com/gin-gonic/gin"
)

// reply writes the function-call envelope the voice platform reads back to
// the caller: {"results":[{"result": "...", ...}]}.
func reply(c *gin.Context, endpoint string, status int, result string, extra gin.H) {
	body := gin.H{"result": result}
	for k, v := range extra {
		body[k] = v
	}
	metrics.VapiRequest(endpoint, status)
	c.AbortWithStatusJSON(status, gin.H{"results": []gin.H{body}})
}

func ack(c *gin.Context) {
	metrics.VapiRequest("webhook", http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
