package cleanup

import (
	"fmt"
	"log"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/storage"

	"gorm.io/gorm"
)

// Service handles physical deletion of expired staging data: terminal
// jobs past their retention window and images that were never assigned
// to a room.
type Service struct {
	db    *gorm.DB
	files storage.Store

	resultsBucket string
	uploadsBucket string
	thumbsBucket  string
}

// NewService creates a new cleanup service
func NewService(db *gorm.DB, files storage.Store, uploadsBucket, resultsBucket, thumbsBucket string) *Service {
	return &Service{
		db:            db,
		files:         files,
		uploadsBucket: uploadsBucket,
		resultsBucket: resultsBucket,
		thumbsBucket:  thumbsBucket,
	}
}

// Config holds configuration for cleanup operations
type Config struct {
	JobRetentionDays int  // Days to keep terminal jobs before physical deletion
	OrphanGraceDays  int  // Days an unassigned image may linger before deletion
	MaxDeletionCount int  // Maximum number of rows to delete in one run (safety limit)
	DryRun           bool // If true, only log what would be deleted
}

// DefaultConfig returns default cleanup configuration
func DefaultConfig() Config {
	return Config{
		JobRetentionDays: 30,
		OrphanGraceDays:  7,
		MaxDeletionCount: 1000,
		DryRun:           false,
	}
}

// Result holds the result of a cleanup operation
type Result struct {
	ExpiredJobs   int       `json:"expired_jobs"`
	DeletedJobs   int       `json:"deleted_jobs"`
	OrphanImages  int       `json:"orphan_images"`
	DeletedImages int       `json:"deleted_images"`
	ErrorCount    int       `json:"error_count"`
	DryRun        bool      `json:"dry_run"`
	ExecutedAt    time.Time `json:"executed_at"`
	Errors        []string  `json:"errors,omitempty"`
}

// Run performs one cleanup pass.
func (s *Service) Run(cfg Config) (*Result, error) {
	result := &Result{
		DryRun:     cfg.DryRun,
		ExecutedAt: time.Now(),
	}

	if err := s.cleanJobs(cfg, result); err != nil {
		return nil, err
	}
	if err := s.cleanOrphanImages(cfg, result); err != nil {
		return nil, err
	}

	log.Printf("Cleanup: done. jobs=%d/%d images=%d/%d errors=%d dry_run=%v",
		result.DeletedJobs, result.ExpiredJobs,
		result.DeletedImages, result.OrphanImages,
		result.ErrorCount, result.DryRun)
	return result, nil
}

// cleanJobs removes terminal jobs older than the retention window.
// Pending and processing jobs are never touched.
func (s *Service) cleanJobs(cfg Config, result *Result) error {
	cutoff := time.Now().AddDate(0, 0, -cfg.JobRetentionDays)

	var jobs []models.StagingJob
	err := s.db.
		Where("status IN ? AND created_at < ?",
			[]string{models.JobStatusCompleted, models.JobStatusError}, cutoff).
		Limit(cfg.MaxDeletionCount).
		Find(&jobs).Error
	if err != nil {
		return fmt.Errorf("failed to find expired jobs: %w", err)
	}

	result.ExpiredJobs = len(jobs)
	if len(jobs) == 0 {
		return nil
	}
	log.Printf("Cleanup: found %d terminal jobs older than %s", len(jobs), cutoff.Format("2006-01-02"))

	for _, job := range jobs {
		if cfg.DryRun {
			log.Printf("Cleanup: [dry-run] would delete job %s (status=%s)", job.ID, job.Status)
			continue
		}

		if job.ResultURL != "" {
			if err := s.files.Delete(s.resultsBucket, storage.ObjectNameFromURL(job.ResultURL)); err != nil {
				result.ErrorCount++
				result.Errors = append(result.Errors, fmt.Sprintf("job %s result file: %v", job.ID, err))
			}
		}
		if err := s.db.Delete(&job).Error; err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("job %s: %v", job.ID, err))
			continue
		}
		result.DeletedJobs++
	}
	return nil
}

// cleanOrphanImages removes images that never joined a room and have
// passed the grace window, including their stored files.
func (s *Service) cleanOrphanImages(cfg Config, result *Result) error {
	cutoff := time.Now().AddDate(0, 0, -cfg.OrphanGraceDays)

	var images []models.Image
	err := s.db.
		Where("room_id IS NULL AND created_at < ?", cutoff).
		Limit(cfg.MaxDeletionCount).
		Find(&images).Error
	if err != nil {
		return fmt.Errorf("failed to find orphan images: %w", err)
	}

	result.OrphanImages = len(images)
	if len(images) == 0 {
		return nil
	}
	log.Printf("Cleanup: found %d orphan images older than %s", len(images), cutoff.Format("2006-01-02"))

	for _, image := range images {
		// Skip orphans that still have work in flight
		var active int64
		s.db.Model(&models.StagingJob{}).
			Where("image_id = ? AND status IN ?", image.ID,
				[]string{models.JobStatusPending, models.JobStatusProcessing}).
			Count(&active)
		if active > 0 {
			continue
		}

		if cfg.DryRun {
			log.Printf("Cleanup: [dry-run] would delete orphan image %s", image.ID)
			continue
		}

		if err := s.files.Delete(s.uploadsBucket, storage.ObjectNameFromURL(image.OriginalURL)); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("image %s upload file: %v", image.ID, err))
		}
		if image.ThumbnailURL != "" {
			if err := s.files.Delete(s.thumbsBucket, storage.ObjectNameFromURL(image.ThumbnailURL)); err != nil {
				result.ErrorCount++
				result.Errors = append(result.Errors, fmt.Sprintf("image %s thumbnail: %v", image.ID, err))
			}
		}

		if err := s.db.Where("image_id = ?", image.ID).Delete(&models.StagingJob{}).Error; err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("image %s jobs: %v", image.ID, err))
			continue
		}
		if err := s.db.Delete(&image).Error; err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("image %s: %v", image.ID, err))
			continue
		}
		result.DeletedImages++
	}
	return nil
}
