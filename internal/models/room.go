package models

import "time"

// Room groups the images of a single physical room. The first image ever
// uploaded to a room becomes its reference image; every other image is a
// secondary camera angle that inherits staging settings from the reference.
type Room struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID string `gorm:"type:varchar(36);not null;index" json:"property_id"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	RoomType   string `gorm:"type:varchar(64);not null" json:"room_type"`

	// ReferenceImageID is set once, when the first image lands in the room.
	// Deleting the reference image nulls it; it is only re-assigned by an
	// upload into a room that has become empty again.
	ReferenceImageID *string `gorm:"type:varchar(36)" json:"reference_image_id"`

	// タイムスタンプ
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	// Insertion order = upload order.
	Images []Image `gorm:"foreignKey:RoomID" json:"images,omitempty"`
}

// TableName はテーブル名を明示的に指定
func (Room) TableName() string {
	return "rooms"
}

// IsReference reports whether the given image id is this room's reference.
func (r *Room) IsReference(imageID string) bool {
	return r.ReferenceImageID != nil && *r.ReferenceImageID == imageID
}

// ReferenceImage returns the loaded reference image, or nil when the room
// has no reference or it is not part of the loaded collection.
func (r *Room) ReferenceImage() *Image {
	if r.ReferenceImageID == nil {
		return nil
	}
	for i := range r.Images {
		if r.Images[i].ID == *r.ReferenceImageID {
			return &r.Images[i]
		}
	}
	return nil
}
