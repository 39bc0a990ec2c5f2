package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scribe/internal/services"
)

// NewRouter builds the HTTP handler tree.
func NewRouter(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), requestID())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.RegisterRoutes(r.Group("/jobs"))
	return r
}

// requestID propagates or assigns a request id, echoing it in the response
// and attaching it to the request context for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
