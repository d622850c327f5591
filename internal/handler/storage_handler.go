package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
	"github.com/noah-isme/wastewatch-api/pkg/response"
)

type mediaService interface {
	RequestUploadTarget(ctx context.Context) (*dto.UploadTarget, error)
	Upload(ctx context.Context, token string, body io.Reader) (*dto.UploadResult, error)
	Open(ctx context.Context, token string) (*os.File, string, error)
}

// StorageHandler exposes the image upload protocol and signed downloads.
type StorageHandler struct {
	media mediaService
}

// NewStorageHandler builds a new handler.
func NewStorageHandler(media mediaService) *StorageHandler {
	return &StorageHandler{media: media}
}

// UploadURL godoc
// @Summary Request an upload target for an image
// @Tags Storage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /storage/upload-url [post]
func (h *StorageHandler) UploadURL(c *gin.Context) {
	target, err := h.media.RequestUploadTarget(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, target)
}

// Upload godoc
// @Summary Upload image bytes to a previously issued target
// @Description The raw request body is stored; the response carries the storage id to pass as imageId.
// @Tags Storage
// @Accept image/jpeg,image/png,image/webp,image/gif
// @Produce json
// @Param token path string true "Upload token"
// @Success 200 {object} dto.UploadResult
// @Failure 502 {object} response.Envelope
// @Router /storage/upload/{token} [post]
func (h *StorageHandler) Upload(c *gin.Context) {
	if c.Request.Body == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUploadFailed, "image is empty"))
		return
	}
	defer c.Request.Body.Close() //nolint:errcheck
	result, err := h.media.Upload(c.Request.Context(), c.Param("token"), c.Request.Body)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, result)
}

// File godoc
// @Summary Download an image through a signed URL
// @Tags Storage
// @Produce octet-stream
// @Param token path string true "Download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /storage/files/{token} [get]
func (h *StorageHandler) File(c *gin.Context) {
	file, contentType, err := h.media.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read file"))
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
