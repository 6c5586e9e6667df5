package repository

import (
	"time"

	"github.com/LeVietHung/CNCademy/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// progressRepository implements the ProgressRepository interface
type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository creates a new progress repository instance
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// MarkCompleted records a lesson completion, idempotently. Re-marking an
// already completed lesson keeps the original completion timestamp.
func (r *progressRepository) MarkCompleted(userID, lessonID uint) (*models.LessonProgress, error) {
	now := time.Now()
	progress := &models.LessonProgress{
		UserID:      userID,
		LessonID:    lessonID,
		CompletedAt: &now,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoNothing: true,
	}).Create(progress).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserAndLesson(userID, lessonID)
}

// ClearCompleted removes the completion mark for a lesson
func (r *progressRepository) ClearCompleted(userID, lessonID uint) error {
	return r.db.Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Delete(&models.LessonProgress{}).Error
}

// GetByUserAndLesson retrieves the progress row for a user and lesson
func (r *progressRepository) GetByUserAndLesson(userID, lessonID uint) (*models.LessonProgress, error) {
	var progress models.LessonProgress
	err := r.db.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListCompletedLessonIDs returns which of the given lessons the user completed
func (r *progressRepository) ListCompletedLessonIDs(userID uint, lessonIDs []uint) ([]uint, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.Model(&models.LessonProgress{}).
		Where("user_id = ? AND lesson_id IN ? AND completed_at IS NOT NULL", userID, lessonIDs).
		Pluck("lesson_id", &ids).Error
	return ids, err
}

// CountCompletedByUser returns the total number of lessons a user completed
func (r *progressRepository) CountCompletedByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.LessonProgress{}).
		Where("user_id = ? AND completed_at IS NOT NULL", userID).
		Count(&count).Error
	return count, err
}
