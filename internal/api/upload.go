package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadHandler stores message images on local disk and returns the
// path clients embed as image_url.
type UploadHandler struct {
	dir    string
	logger *zap.Logger
}

func NewUploadHandler(dir string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{dir: dir, logger: logger}
}

// ImagesDir is where stored images live, for wiring the static route.
func (h *UploadHandler) ImagesDir() string {
	return filepath.Join(h.dir, "images")
}

// UploadImage handles POST /v1/uploads/images with a multipart field
// named "image".
func (h *UploadHandler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the 10MB limit"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	// The stored name never includes anything client-controlled
	// besides the vetted extension.
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		h.logger.Error("generate upload name", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	name := fmt.Sprintf("%d-%s%s", time.Now().Unix(), hex.EncodeToString(suffix), ext)

	dir := h.ImagesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Error("create upload directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(dir, name)); err != nil {
		h.logger.Error("save uploaded image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": "/uploads/images/" + name})
}
