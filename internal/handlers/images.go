package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/database"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps a single image upload at 25MB.
const maxUploadBytes = 25 << 20

// ImageHandler は画像アップロードと削除のAPIハンドラー
type ImageHandler struct {
	db            *database.GormDB
	files         storage.Store
	uploadsBucket string
	thumbsBucket  string
	resultsBucket string
}

func NewImageHandler(db *database.GormDB, files storage.Store, uploadsBucket, thumbsBucket, resultsBucket string) *ImageHandler {
	return &ImageHandler{
		db:            db,
		files:         files,
		uploadsBucket: uploadsBucket,
		thumbsBucket:  thumbsBucket,
		resultsBucket: resultsBucket,
	}
}

// UploadImage は画像をアップロードしてルームに登録する
// POST /api/v1/images/upload (multipart: file, optional room_id)
func (h *ImageHandler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file exceeds limit of %d bytes", maxUploadBytes)})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	if len(data) == 0 {
		respondError(c, &staging.ValidationError{Field: "file", Reason: "file must not be empty"})
		return
	}

	width, height, err := storage.ProbeDimensions(data)
	if err != nil {
		respondError(c, &staging.ValidationError{Field: "file", Reason: "file is not a decodable image"})
		return
	}

	imageID := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	objectName := imageID + ext

	originalURL, err := h.files.Save(h.uploadsBucket, objectName, data)
	if err != nil {
		log.Printf("ImageHandler: failed to store upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	// Thumbnail failure is not fatal; the original still serves.
	thumbnailURL := ""
	if thumb, err := storage.Thumbnail(data); err != nil {
		log.Printf("ImageHandler: failed to build thumbnail for %s: %v", imageID, err)
	} else if url, err := h.files.Save(h.thumbsBucket, imageID+".jpg", thumb); err != nil {
		log.Printf("ImageHandler: failed to store thumbnail for %s: %v", imageID, err)
	} else {
		thumbnailURL = url
	}

	image := &models.Image{
		ID:               imageID,
		OriginalFilename: fileHeader.Filename,
		OriginalURL:      originalURL,
		ThumbnailURL:     thumbnailURL,
		Width:            width,
		Height:           height,
		FileSize:         int64(len(data)),
		Format:           strings.TrimPrefix(ext, "."),
	}
	if roomID := strings.TrimSpace(c.PostForm("room_id")); roomID != "" {
		image.RoomID = &roomID
	}

	if err := h.db.CreateImage(image); err != nil {
		log.Printf("ImageHandler: failed to create image record: %v", err)
		h.files.Delete(h.uploadsBucket, objectName)
		if thumbnailURL != "" {
			h.files.Delete(h.thumbsBucket, imageID+".jpg")
		}
		respondError(c, err)
		return
	}

	log.Printf("ImageHandler: uploaded image %s (%dx%d, %d bytes)", imageID, width, height, len(data))
	c.JSON(http.StatusCreated, image)
}

// GetImage は画像詳細(最新の結果込み)を返す
// GET /api/v1/images/:id
func (h *ImageHandler) GetImage(c *gin.Context) {
	image, err := h.db.GetImageByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, image)
}

// DeleteImage は画像とそのジョブを削除する
// DELETE /api/v1/images/:id
func (h *ImageHandler) DeleteImage(c *gin.Context) {
	imageID := c.Param("id")

	image, err := h.db.GetImageByID(imageID)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.db.DeleteImage(imageID); err != nil {
		log.Printf("ImageHandler: failed to delete image %s: %v", imageID, err)
		respondError(c, err)
		return
	}

	// Best-effort file removal after the rows are gone.
	if image.OriginalURL != "" {
		h.files.Delete(h.uploadsBucket, storage.ObjectNameFromURL(image.OriginalURL))
	}
	if image.ThumbnailURL != "" {
		h.files.Delete(h.thumbsBucket, storage.ObjectNameFromURL(image.ThumbnailURL))
	}
	if image.LatestResultURL != "" {
		h.files.Delete(h.resultsBucket, storage.ObjectNameFromURL(image.LatestResultURL))
	}

	log.Printf("ImageHandler: deleted image %s", imageID)
	c.JSON(http.StatusOK, gin.H{"message": "image deleted"})
}
