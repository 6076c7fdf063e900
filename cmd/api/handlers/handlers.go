package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/dto"
	"naa-posts/cmd/api/payload"
	"naa-posts/cmd/api/trace"
	"naa-posts/cmd/internal/logger"
)

// writeError maps err onto the shared error body. upstreamStatus is the status used
// for upstream and configuration failures at this call site.
func writeError(c *gin.Context, err error, upstreamStatus int, fallback string) {
	status := apperr.Status(err, upstreamStatus)
	msg := apperr.Message(err, fallback)

	fields := logger.Fields(trace.Fields(c.Request.Context()))
	fields["status"] = status
	fields["kind"] = apperr.KindOf(err).String()
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		logger.ErrorWithFields("request failed", fields)
	} else {
		logger.InfoWithFields("request rejected", fields)
	}

	c.JSON(status, dto.ErrorResponseDTO{Error: msg})
}

func parsePayload(c *gin.Context, maxFileBytes int64) (*payload.Payload, bool) {
	p, err := payload.Parse(c.Request, maxFileBytes)
	if err != nil {
		writeError(c, err, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return p, true
}

// postID reads the id from the path, then from ?id= for the legacy routes.
func postID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		id = strings.TrimSpace(c.Query("id"))
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "Post ID is required"})
		return "", false
	}
	return id, true
}
