package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
)

// RoomView is an immutable snapshot of a room screen: the room with its
// images plus the per-image display toggles.
type RoomView struct {
	Room *models.Room
	// ShowStaged maps image ID to whether the staged result is shown
	// instead of the original.
	ShowStaged map[string]bool
}

// DisplayURL returns the URL the given image should currently display:
// the latest staged result when the toggle is on and a result exists,
// the original otherwise.
func (v *RoomView) DisplayURL(imageID string) string {
	if v.Room == nil {
		return ""
	}
	for i := range v.Room.Images {
		img := &v.Room.Images[i]
		if img.ID != imageID {
			continue
		}
		if v.ShowStaged[imageID] && img.LatestResultURL != "" {
			return img.LatestResultURL
		}
		return img.OriginalURL
	}
	return ""
}

// RoomController drives one room screen. It is safe for concurrent use;
// refreshes and toggles may arrive from different goroutines.
type RoomController struct {
	api    *Client
	roomID string

	mu         sync.Mutex
	room       *models.Room
	showStaged map[string]bool
}

func NewRoomController(api *Client, roomID string) *RoomController {
	return &RoomController{
		api:        api,
		roomID:     roomID,
		showStaged: make(map[string]bool),
	}
}

// Refresh reloads the room and rebuilds the toggle map. New images with
// a staged result default to showing it; toggles the user already set
// are never overwritten by a reload.
func (rc *RoomController) Refresh(ctx context.Context) (*RoomView, error) {
	room, err := rc.api.GetRoom(ctx, rc.roomID)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	merged := make(map[string]bool, len(room.Images))
	for i := range room.Images {
		img := &room.Images[i]
		if prev, ok := rc.showStaged[img.ID]; ok {
			merged[img.ID] = prev
		} else {
			merged[img.ID] = img.LatestResultURL != ""
		}
	}
	rc.room = room
	rc.showStaged = merged

	return rc.snapshotLocked(), nil
}

// Toggle flips an image between staged and original display and returns
// the new state.
func (rc *RoomController) Toggle(imageID string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.showStaged[imageID] = !rc.showStaged[imageID]
	return rc.showStaged[imageID]
}

// Snapshot returns the current view without refetching. Returns nil
// before the first successful Refresh.
func (rc *RoomController) Snapshot() *RoomView {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.room == nil {
		return nil
	}
	return rc.snapshotLocked()
}

func (rc *RoomController) snapshotLocked() *RoomView {
	toggles := make(map[string]bool, len(rc.showStaged))
	for k, v := range rc.showStaged {
		toggles[k] = v
	}
	return &RoomView{Room: rc.room, ShowStaged: toggles}
}

// UploadResult is the outcome of uploading an image into the room.
type UploadResult struct {
	Image *models.Image
	// OpenEditor is true when the upload landed in a previously empty
	// room: the image became the reference and the staging editor
	// should open immediately.
	OpenEditor bool
	// SeedOptions are the editor defaults for the uploaded image.
	SeedOptions staging.Options
}

// Upload sends a new image into the room and refreshes the view. When
// the room was empty, the new image becomes the reference and the
// caller is told to open the staging editor seeded with its defaults.
func (rc *RoomController) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	image, err := rc.api.UploadImage(ctx, filename, data, rc.roomID)
	if err != nil {
		return nil, err
	}

	view, err := rc.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	// Use the refreshed copy: it carries the decorated latest settings.
	uploaded := image
	for i := range view.Room.Images {
		if view.Room.Images[i].ID == image.ID {
			uploaded = &view.Room.Images[i]
			break
		}
	}

	// The room was empty before exactly when it now holds only this
	// image and the server made it the reference. Deriving that from the
	// refreshed view keeps the signal correct even when Upload is the
	// first call on the controller.
	result := &UploadResult{
		Image:       uploaded,
		OpenEditor:  len(view.Room.Images) == 1 && view.Room.IsReference(uploaded.ID),
		SeedOptions: staging.Defaults(view.Room, uploaded),
	}
	return result, nil
}

// DeleteRoom deletes the room. A room that still holds images is
// rejected locally, mirroring the server-side rule, so the UI can show
// the explanation without a round trip.
func (rc *RoomController) DeleteRoom(ctx context.Context) error {
	rc.mu.Lock()
	imageCount := 0
	if rc.room != nil {
		imageCount = len(rc.room.Images)
	}
	rc.mu.Unlock()

	if imageCount > 0 {
		return &staging.PreconditionError{
			Reason: fmt.Sprintf("room still contains %d images; delete them first", imageCount),
		}
	}
	return rc.api.DeleteRoom(ctx, rc.roomID)
}
