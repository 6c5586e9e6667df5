package models

import "time"

// LessonProgress marks a lesson as completed for a user.
type LessonProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index:ux_lesson_progress_user_lesson,unique,priority:1" json:"user_id"`
	LessonID    uint       `gorm:"not null;index:ux_lesson_progress_user_lesson,unique,priority:2" json:"lesson_id"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
