package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"naa-posts/cmd/api/dto"
	"naa-posts/cmd/api/services"
)

// UploadHandler godoc
// @Summary      Upload image
// @Description  Stores one image sent as multipart field file/image, or as JSON {file|image: data URI or base64, filename}.
// @Tags         uploads
// @Accept       json,mpfd
// @Produce      json
// @Success      200  {object}  dto.UploadResponseDTO
// @Failure      400  {object}  dto.ErrorResponseDTO
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /upload [post]
func UploadHandler(svc *services.UploadService, maxFileBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, ok := parsePayload(c, maxFileBytes)
		if !ok {
			return
		}
		stored, err := svc.Upload(c.Request.Context(), in)
		if err != nil {
			writeError(c, err, http.StatusInternalServerError, "Upload failed")
			return
		}
		c.JSON(http.StatusOK, dto.UploadResponseDTO{Success: true, URL: stored.URL, Filename: stored.Filename})
	}
}

// UploadProxyHandler godoc
// @Summary      Relay upload to UploadThing
// @Description  Forwards the raw multipart body and relays the upstream status and JSON. Non-JSON replies are wrapped as {"raw": "..."}.
// @Tags         uploads
// @Accept       mpfd
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  dto.ErrorResponseDTO
// @Router       /ut-upload [post]
func UploadProxyHandler(svc *services.UploadService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, body, err := svc.Proxy(c.Request.Context(), c.GetHeader("Content-Type"), c.Request.Body)
		if err != nil {
			writeError(c, err, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if json.Valid(bytes.TrimSpace(body)) && len(bytes.TrimSpace(body)) > 0 {
			c.Data(status, "application/json; charset=utf-8", body)
			return
		}
		c.JSON(status, gin.H{"raw": string(body)})
	}
}
