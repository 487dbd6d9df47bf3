package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/database"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler はステージングジョブのAPIハンドラー
type JobHandler struct {
	db *database.GormDB
}

func NewJobHandler(db *database.GormDB) *JobHandler {
	return &JobHandler{db: db}
}

type createJobRequest struct {
	ImageID         string  `json:"image_id"`
	RoomID          *string `json:"room_id"`
	RoomType        string  `json:"room_type"`
	StylePreset     string  `json:"style_preset"`
	FixWhiteBalance bool    `json:"fix_white_balance"`
	WallDecorations bool    `json:"wall_decorations"`
	IncludeTV       bool    `json:"include_tv"`
}

// jobResponse adds the joined image URL to the job row so pollers never
// need a second request to display the before image.
type jobResponse struct {
	models.StagingJob
	OriginalImageURL string `json:"original_image_url,omitempty"`
}

// CreateJob はステージングジョブを受け付ける
// POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.ImageID) == "" {
		respondError(c, &staging.ValidationError{Field: "image_id", Reason: "image_id is required"})
		return
	}

	image, err := h.db.GetImageByID(req.ImageID)
	if err != nil {
		respondError(c, err)
		return
	}

	// The image's own room wins; an explicit room_id only applies to
	// images that are not in a room.
	roomID := image.RoomID
	if roomID == nil {
		roomID = req.RoomID
	}
	var room *models.Room
	if roomID != nil {
		room, err = h.db.GetRoomByID(*roomID)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	roomType := req.RoomType
	if roomType == "" && room != nil {
		roomType = room.RoomType
	}

	requested := staging.Options{
		StylePreset:     req.StylePreset,
		FixWhiteBalance: req.FixWhiteBalance,
		WallDecorations: req.WallDecorations,
		IncludeTV:       req.IncludeTV,
	}
	effective, err := staging.Resolve(room, image, roomType, requested)
	if err != nil {
		respondError(c, err)
		return
	}

	job := &models.StagingJob{
		ID:              uuid.NewString(),
		ImageID:         image.ID,
		RoomID:          roomID,
		RoomType:        staging.NormalizeRoomType(roomType),
		StylePreset:     effective.StylePreset,
		FixWhiteBalance: effective.FixWhiteBalance,
		WallDecorations: effective.WallDecorations,
		IncludeTV:       effective.IncludeTV,
		Status:          models.JobStatusPending,
		CurrentStep:     "Queued",
	}
	if err := h.db.CreateJob(job); err != nil {
		log.Printf("JobHandler: failed to create job: %v", err)
		respondError(c, err)
		return
	}

	log.Printf("JobHandler: created job %s for image %s (style=%s)", job.ID, image.ID, job.StylePreset)
	c.JSON(http.StatusCreated, jobResponse{StagingJob: *job, OriginalImageURL: image.OriginalURL})
}

// GetJob はジョブの現在の状態を返す
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.db.GetJobByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := jobResponse{StagingJob: *job}
	if image, err := h.db.GetImageByID(job.ImageID); err == nil {
		resp.OriginalImageURL = image.OriginalURL
	}
	c.JSON(http.StatusOK, resp)
}

// ListJobs はジョブ一覧を新しい順に返す
// GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.db.ListJobs()
	if err != nil {
		log.Printf("JobHandler: failed to list jobs: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// DeleteJob はジョブの記録を削除する
// DELETE /api/v1/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.db.DeleteJob(jobID); err != nil {
		respondError(c, err)
		return
	}
	log.Printf("JobHandler: deleted job %s", jobID)
	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}
