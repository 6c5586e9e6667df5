package repository

import (
	"github.com/LeVietHung/CNCademy/app/models"
	"gorm.io/gorm"
)

// courseRepository implements the CourseRepository interface
type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository creates a new course repository instance
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

// Create creates a new course in the database
func (r *courseRepository) Create(course *models.Course) error {
	return r.db.Create(course).Error
}

// GetByID retrieves a course by its ID including modules and lessons
func (r *courseRepository) GetByID(id uint) (*models.Course, error) {
	var course models.Course
	err := r.db.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetByUUID retrieves a course by its public UUID including modules and lessons
func (r *courseRepository) GetByUUID(uuid string) (*models.Course, error) {
	var course models.Course
	err := r.db.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Where("uuid = ?", uuid).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetBySlug retrieves a course by its slug including modules and lessons
func (r *courseRepository) GetBySlug(slug string) (*models.Course, error) {
	var course models.Course
	err := r.db.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).Where("slug = ?", slug).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetPublished retrieves all published courses ordered for the catalog
func (r *courseRepository) GetPublished() ([]models.Course, error) {
	var courses []models.Course
	err := r.db.Where("is_published = ?", true).
		Order("sort_order ASC, created_at ASC").
		Find(&courses).Error
	return courses, err
}

// GetAll retrieves a paginated list of all courses
func (r *courseRepository) GetAll(offset, limit int) ([]models.Course, error) {
	var courses []models.Course
	err := r.db.Order("sort_order ASC, created_at ASC").Offset(offset).Limit(limit).Find(&courses).Error
	return courses, err
}

// Update updates an existing course in the database
func (r *courseRepository) Update(course *models.Course) error {
	return r.db.Save(course).Error
}

// Delete soft deletes a course by its ID
func (r *courseRepository) Delete(id uint) error {
	return r.db.Delete(&models.Course{}, id).Error
}

// Count returns the total number of courses
func (r *courseRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Course{}).Count(&count).Error
	return count, err
}

// SlugExists checks if a course slug is already taken
func (r *courseRepository) SlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Course{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// SlugExistsExceptID checks if a slug is taken by any course other than the given one
func (r *courseRepository) SlugExistsExceptID(slug string, id uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Course{}).Where("slug = ? AND id <> ?", slug, id).Count(&count).Error
	return count > 0, err
}
