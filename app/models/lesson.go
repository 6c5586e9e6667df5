package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Lesson is a single unit of course content. Video and article bodies live
// with the lesson; attached files live in LessonResource.
type Lesson struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	ModuleID      uint           `gorm:"not null;index" json:"module_id"`
	Title         string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Summary       string         `gorm:"type:text" json:"summary"`
	VideoURL      string         `gorm:"type:varchar(500);default:''" json:"video_url"`
	DurationSecs  int            `gorm:"default:0" json:"duration_secs"`
	IsFreePreview bool           `gorm:"default:false;index" json:"is_free_preview"`
	SortOrder     int            `gorm:"default:0" json:"sort_order"`
	ViewCount     int64          `gorm:"default:0" json:"view_count"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Resources []LessonResource `gorm:"foreignKey:LessonID" json:"resources,omitempty"`
}

// BeforeCreate assigns a public UUID if none is set.
func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == "" {
		l.UUID = uuid.New().String()
	}
	return nil
}
