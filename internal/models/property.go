package models

import "time"

type Property struct {
	// 基本情報
	ID      string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Address string `gorm:"type:text" json:"address,omitempty"`

	// タイムスタンプ
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_properties_created,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	Rooms []Room `gorm:"foreignKey:PropertyID" json:"rooms,omitempty"`
}

// TableName はテーブル名を明示的に指定
func (Property) TableName() string {
	return "properties"
}

// RoomCount returns the number of rooms loaded on this property.
func (p *Property) RoomCount() int {
	return len(p.Rooms)
}
