// router.go - Route table

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version reported by the liveness endpoint.
const Version = "1.0.0"

// NewRouter wires middleware and routes around h.
func NewRouter(h *Handler, allowedOrigins string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), RequestID(), CORS(allowedOrigins))

	// Uploads above this spill to temp files instead of memory
	router.MaxMultipartMemory = 32 << 20

	// Root endpoint for load balancer / SSL probes
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET("/health", HealthHandler)

	router.POST("/extract-bill-data", h.ExtractBillData)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/extract-bill-data", h.ExtractBillData)
	}

	return router
}

// HealthHandler reports a fixed liveness payload. It does no work.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "bill-extraction-api",
		"version": Version,
	})
}
