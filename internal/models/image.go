package models

import "time"

// Image is an uploaded room photograph. RoomID is nullable: an image may
// exist unassociated with any room (ad-hoc single-shot staging flow).
type Image struct {
	ID               string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	RoomID           *string `gorm:"type:varchar(36);index" json:"room_id"`
	OriginalFilename string  `gorm:"type:varchar(255)" json:"original_filename,omitempty"`
	OriginalURL      string  `gorm:"type:text;not null" json:"original_url"`
	ThumbnailURL     string  `gorm:"type:text" json:"thumbnail_url,omitempty"`

	// 画像メタデータ
	Width    int    `gorm:"default:0" json:"width,omitempty"`
	Height   int    `gorm:"default:0" json:"height,omitempty"`
	FileSize int64  `gorm:"default:0" json:"file_size,omitempty"`
	Format   string `gorm:"type:varchar(64)" json:"format,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	// Computed on read from the newest completed job for this image.
	// Never persisted on the row; jobs stay the single source of truth.
	LatestResultURL string           `gorm:"-" json:"latest_result_url,omitempty"`
	LatestSettings  *SettingsSnapshot `gorm:"-" json:"latest_settings,omitempty"`
}

// TableName はテーブル名を明示的に指定
func (Image) TableName() string {
	return "images"
}

// SettingsSnapshot is the option set a completed job was produced with.
type SettingsSnapshot struct {
	StylePreset     string `json:"style_preset"`
	FixWhiteBalance bool   `json:"fix_white_balance"`
	WallDecorations bool   `json:"wall_decorations"`
	IncludeTV       bool   `json:"include_tv"`
}
