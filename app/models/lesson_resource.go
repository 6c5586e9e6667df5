package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LessonResource is a downloadable file attached to a lesson (toolpath
// archives, setup sheets, G-code samples). The file itself lives in object
// storage under ObjectKey; downloads go through presigned URLs.
type LessonResource struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          string    `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	LessonID      uint      `gorm:"not null;index" json:"lesson_id"`
	Name          string    `gorm:"type:varchar(200);not null" json:"name"`
	ObjectKey     string    `gorm:"type:varchar(500);not null" json:"-"`
	MimeType      string    `gorm:"type:varchar(100);default:''" json:"mime_type"`
	SizeBytes     int64     `gorm:"default:0" json:"size_bytes"`
	DownloadCount int64     `gorm:"default:0" json:"download_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a public UUID if none is set.
func (r *LessonResource) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.New().String()
	}
	return nil
}
