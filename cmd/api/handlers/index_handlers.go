package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"naa-posts/cmd/api/dto"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexHandler describes the service and its endpoints.
func IndexHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "naa-posts",
			"message": "Posts API is running",
			"endpoints": gin.H{
				"GET /api/posts":        "list posts (type, status, search, page, itemsPerPage)",
				"GET /api/posts/:id":    "get a post",
				"POST /api/posts":       "create a post (JSON or multipart)",
				"PUT /api/posts/:id":    "update a post",
				"DELETE /api/posts/:id": "delete a post",
				"POST /api/upload":      "upload one image",
				"POST /api/ut-upload":   "relay a multipart upload to UploadThing",
			},
		})
	}
}

// HealthHandler godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponseDTO
// @Failure      503  {object}  dto.HealthResponseDTO
// @Router       /health [get]
func HealthHandler(store Pinger, storage, uploads string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		resp := dto.HealthResponseDTO{Status: "ok", Storage: storage, Uploads: uploads}
		if err := store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
