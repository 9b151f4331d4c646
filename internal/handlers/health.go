package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Prober reports dependency health.
type Prober interface {
	Probe(ctx context.Context) (map[string]string, bool)
}

// OnlineCounter reports the number of live users.
type OnlineCounter interface {
	Count() int
}

// RegisterHealthRoutes mounts GET /healthz.
func RegisterHealthRoutes(router gin.IRoutes, prober Prober, online OnlineCounter) {
	router.GET("/healthz", func(c *gin.Context) {
		checks, ok := prober.Probe(c.Request.Context())
		body := gin.H{"status": "ok", "checks": checks, "onlineUsers": online.Count()}
		if !ok {
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	})
}
