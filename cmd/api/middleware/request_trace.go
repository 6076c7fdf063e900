package middleware

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"naa-posts/cmd/api/trace"
	"naa-posts/cmd/internal/logger"
)

const (
	headerRequestID = "X-Request-Id"
	headerSpanID    = "X-Span-Id"

	maxBodyLog  = 1024
	maxBodyScan = 64 << 10
)

var dataURIPattern = regexp.MustCompile(`data:[^;,"]*;base64,[A-Za-z0-9+/=_-]+`)

// RequestTrace ensures every inbound request carries a request id and span id,
// stores them in the context and response headers, and logs one line per request.
func RequestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		requestID := req.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = trace.GenerateID()
		}

		// inbound line is span 0, outbound calls count up from 1
		ctxWithTrace := trace.WithRequestAndSpan(req.Context(), requestID, 0)
		c.Request = req.WithContext(ctxWithTrace)
		req = c.Request

		currentSpan := trace.CurrentSpanID(ctxWithTrace)
		c.Request.Header.Set(headerRequestID, requestID)
		c.Request.Header.Set(headerSpanID, currentSpan)
		c.Writer.Header().Set(headerRequestID, requestID)
		c.Writer.Header().Set(headerSpanID, currentSpan)

		queryParams := map[string][]string{}
		for key, values := range req.URL.Query() {
			if len(values) > 0 {
				queryParams[key] = values
			}
		}

		bodySnippet := snapshotBody(c)

		c.Next()

		fields := logger.Fields{
			"method":       req.Method,
			"path":         req.URL.Path,
			"query_params": queryParams,
			"status":       c.Writer.Status(),
			"duration":     time.Since(start).String(),
			"request_id":   requestID,
			"span_id":      trace.CurrentSpanID(c.Request.Context()),
		}
		if bodySnippet != "" {
			fields["body"] = bodySnippet
		}
		logger.InfoWithFields("completed request", fields)
	}
}

type replayBody struct {
	io.Reader
	io.Closer
}

// snapshotBody captures a loggable prefix of JSON and form bodies and restores the body.
// Multipart bodies are never buffered.
func snapshotBody(c *gin.Context) string {
	req := c.Request
	if req.Body == nil || req.ContentLength == 0 {
		return ""
	}
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return ""
	}
	mt, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mt != "application/json" && mt != "application/x-www-form-urlencoded" {
		return ""
	}

	// only a prefix is read; the handler gets the prefix followed by the unread rest
	prefix, err := io.ReadAll(io.LimitReader(req.Body, maxBodyScan))
	c.Request.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(prefix), req.Body),
		Closer: req.Body,
	}
	if err != nil || len(prefix) == 0 {
		return ""
	}
	snippet := dataURIPattern.ReplaceAllString(string(prefix), "data:…")
	if len(snippet) > maxBodyLog {
		snippet = snippet[:maxBodyLog]
	}
	return snippet
}
