package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProperty persists a new property.
func (gdb *GormDB) CreateProperty(p *models.Property) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return gdb.db.Create(p).Error
}

// GetProperties lists all properties, newest first.
func (gdb *GormDB) GetProperties() ([]models.Property, error) {
	var properties []models.Property
	err := gdb.db.Order("created_at DESC").Find(&properties).Error
	return properties, err
}

// GetPropertyByID loads a property with its rooms (upload order) and the
// rooms' images, with the latest staging outcome filled in per image.
func (gdb *GormDB) GetPropertyByID(id string) (*models.Property, error) {
	var property models.Property
	err := gdb.db.
		Preload("Rooms", func(db *gorm.DB) *gorm.DB {
			return db.Order("rooms.created_at ASC")
		}).
		Preload("Rooms.Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("images.created_at ASC")
		}).
		First(&property, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &staging.NotFoundError{Resource: "property", ID: id}
	}
	if err != nil {
		return nil, err
	}

	for i := range property.Rooms {
		if err := gdb.decorateImages(property.Rooms[i].Images); err != nil {
			return nil, err
		}
	}
	return &property, nil
}

// CreateRoom persists a new room under an existing property.
func (gdb *GormDB) CreateRoom(propertyID string, room *models.Room) error {
	var count int64
	if err := gdb.db.Model(&models.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return &staging.NotFoundError{Resource: "property", ID: propertyID}
	}

	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.PropertyID = propertyID
	return gdb.db.Create(room).Error
}

// GetRoomByID loads a room with its images in upload order and the
// latest staging outcome filled in per image.
func (gdb *GormDB) GetRoomByID(id string) (*models.Room, error) {
	var room models.Room
	err := gdb.db.
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("images.created_at ASC")
		}).
		First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &staging.NotFoundError{Resource: "room", ID: id}
	}
	if err != nil {
		return nil, err
	}

	if err := gdb.decorateImages(room.Images); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteRoom removes a room. A room may only be deleted while its image
// collection is empty; this is a precondition, not a cascade.
func (gdb *GormDB) DeleteRoom(id string) error {
	var room models.Room
	if err := gdb.db.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &staging.NotFoundError{Resource: "room", ID: id}
		}
		return err
	}

	var imageCount int64
	if err := gdb.db.Model(&models.Image{}).Where("room_id = ?", id).Count(&imageCount).Error; err != nil {
		return err
	}
	if imageCount > 0 {
		return &staging.PreconditionError{
			Reason: fmt.Sprintf("cannot delete room with %d images; delete the images first", imageCount),
		}
	}

	return gdb.db.Delete(&room).Error
}

// CreateImage persists an uploaded image. When the image lands in a room
// that currently has zero images it becomes that room's reference, in
// the same transaction as the insert.
func (gdb *GormDB) CreateImage(image *models.Image) error {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}

	return gdb.db.Transaction(func(tx *gorm.DB) error {
		if image.RoomID != nil {
			var room models.Room
			if err := tx.First(&room, "id = ?", *image.RoomID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &staging.NotFoundError{Resource: "room", ID: *image.RoomID}
				}
				return err
			}

			var existing int64
			if err := tx.Model(&models.Image{}).Where("room_id = ?", room.ID).Count(&existing).Error; err != nil {
				return err
			}

			if err := tx.Create(image).Error; err != nil {
				return err
			}

			// First image ever (or first after the room emptied out)
			// becomes the reference. Non-empty rooms never re-promote.
			if existing == 0 {
				return tx.Model(&room).Update("reference_image_id", image.ID).Error
			}
			return nil
		}
		return tx.Create(image).Error
	})
}

// GetImageByID loads a single image with its latest staging outcome.
func (gdb *GormDB) GetImageByID(id string) (*models.Image, error) {
	var image models.Image
	err := gdb.db.First(&image, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &staging.NotFoundError{Resource: "image", ID: id}
	}
	if err != nil {
		return nil, err
	}

	images := []models.Image{image}
	if err := gdb.decorateImages(images); err != nil {
		return nil, err
	}
	return &images[0], nil
}

// DeleteImage removes an image and its jobs. Deleting a room's reference
// image nulls reference_image_id; no other image is promoted.
func (gdb *GormDB) DeleteImage(id string) error {
	return gdb.db.Transaction(func(tx *gorm.DB) error {
		var image models.Image
		if err := tx.First(&image, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &staging.NotFoundError{Resource: "image", ID: id}
			}
			return err
		}

		if image.RoomID != nil {
			if err := tx.Model(&models.Room{}).
				Where("id = ? AND reference_image_id = ?", *image.RoomID, image.ID).
				Update("reference_image_id", nil).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("image_id = ?", image.ID).Delete(&models.StagingJob{}).Error; err != nil {
			return err
		}
		return tx.Delete(&image).Error
	})
}

// CreateJob persists a new staging job in pending state.
func (gdb *GormDB) CreateJob(job *models.StagingJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	return gdb.db.Create(job).Error
}

// GetJobByID loads a single staging job.
func (gdb *GormDB) GetJobByID(id string) (*models.StagingJob, error) {
	var job models.StagingJob
	err := gdb.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &staging.NotFoundError{Resource: "job", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all jobs, newest first.
func (gdb *GormDB) ListJobs() ([]models.StagingJob, error) {
	var jobs []models.StagingJob
	err := gdb.db.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// DeleteJob removes a staging job.
func (gdb *GormDB) DeleteJob(id string) error {
	result := gdb.db.Where("id = ?", id).Delete(&models.StagingJob{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &staging.NotFoundError{Resource: "job", ID: id}
	}
	return nil
}

// ClaimNextPendingJob atomically picks the oldest pending job and marks
// it processing. Returns nil when the queue is empty.
func (gdb *GormDB) ClaimNextPendingJob() (*models.StagingJob, error) {
	var job models.StagingJob

	err := gdb.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("status = ?", models.JobStatusPending).
			Order("created_at ASC").
			First(&job)
		if result.Error != nil {
			return result.Error
		}

		now := time.Now()
		job.Status = models.JobStatusProcessing
		job.StartedAt = &now
		job.Attempts++
		return tx.Save(&job).Error
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SaveJob writes a job back, guarding against progress going backwards.
func (gdb *GormDB) SaveJob(job *models.StagingJob) error {
	var current models.StagingJob
	if err := gdb.db.Select("progress_percent").First(&current, "id = ?", job.ID).Error; err == nil {
		if job.ProgressPercent < current.ProgressPercent {
			job.ProgressPercent = current.ProgressPercent
		}
	}
	return gdb.db.Save(job).Error
}

// LatestCompletedJob returns the newest completed job with a result for
// the given image, or nil when none exists.
func (gdb *GormDB) LatestCompletedJob(imageID string) (*models.StagingJob, error) {
	var job models.StagingJob
	err := gdb.db.
		Where("image_id = ? AND status = ? AND result_url <> ''", imageID, models.JobStatusCompleted).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// decorateImages fills LatestResultURL and LatestSettings on each image
// from its newest completed job. Jobs stay the single source of truth;
// nothing is written back to the image rows.
func (gdb *GormDB) decorateImages(images []models.Image) error {
	for i := range images {
		job, err := gdb.LatestCompletedJob(images[i].ID)
		if err != nil {
			return err
		}
		if job != nil {
			images[i].LatestResultURL = job.ResultURL
			images[i].LatestSettings = job.Settings()
		}
	}
	return nil
}
