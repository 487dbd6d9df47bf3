package models

import "time"

// StagingJob is an asynchronous request to render a virtually staged
// version of an image. It is created on submission and mutated only by
// the worker; clients observe it via polling.
type StagingJob struct {
	ID      string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	ImageID string  `gorm:"type:varchar(36);not null;index" json:"image_id"`
	RoomID  *string `gorm:"type:varchar(36);index" json:"room_id,omitempty"`

	RoomType        string `gorm:"type:varchar(64);not null" json:"room_type"`
	StylePreset     string `gorm:"type:varchar(32);not null" json:"style_preset"`
	FixWhiteBalance bool   `gorm:"default:false" json:"fix_white_balance"`
	WallDecorations bool   `gorm:"default:true" json:"wall_decorations"`
	IncludeTV       bool   `gorm:"default:false" json:"include_tv"`

	Status          string  `gorm:"type:varchar(20);not null;default:'pending';index:idx_jobs_status" json:"status"` // pending, processing, completed, error
	ProgressPercent float64 `gorm:"default:0" json:"progress_percent"`
	CurrentStep     string  `gorm:"type:varchar(255)" json:"current_step,omitempty"`
	ErrorMessage    string  `gorm:"type:text" json:"error_message,omitempty"`
	ResultURL       string  `gorm:"type:text" json:"result_url,omitempty"`
	Attempts        int     `gorm:"default:0" json:"attempts"`

	GenerationTimeSeconds int `gorm:"default:0" json:"generation_time_seconds,omitempty"`

	CreatedAt   time.Time  `gorm:"not null;autoCreateTime;index:idx_jobs_created,sort:desc" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName はテーブル名を明示的に指定
func (StagingJob) TableName() string {
	return "staging_jobs"
}

// Status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusError      = "error"
)

// IsTerminal reports whether s is a status from which no further
// transition occurs.
func IsTerminal(s string) bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *StagingJob) IsTerminal() bool {
	return IsTerminal(j.Status)
}

// Settings returns the option snapshot this job was submitted with.
func (j *StagingJob) Settings() *SettingsSnapshot {
	return &SettingsSnapshot{
		StylePreset:     j.StylePreset,
		FixWhiteBalance: j.FixWhiteBalance,
		WallDecorations: j.WallDecorations,
		IncludeTV:       j.IncludeTV,
	}
}
