package repository

import (
	"github.com/LeVietHung/CNCademy/app/models"
	"gorm.io/gorm"
)

// lessonRepository implements the LessonRepository interface
type lessonRepository struct {
	db *gorm.DB
}

// NewLessonRepository creates a new lesson repository instance
func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepository{db: db}
}

// Create creates a new lesson in the database
func (r *lessonRepository) Create(lesson *models.Lesson) error {
	return r.db.Create(lesson).Error
}

// GetByID retrieves a lesson by its ID including resources
func (r *lessonRepository) GetByID(id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.Preload("Resources").First(&lesson, id).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// GetByUUID retrieves a lesson by its public UUID including resources
func (r *lessonRepository) GetByUUID(uuid string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.Preload("Resources").Where("uuid = ?", uuid).First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// GetByModuleID retrieves all lessons for a module in display order
func (r *lessonRepository) GetByModuleID(moduleID uint) ([]models.Lesson, error) {
	var lessons []models.Lesson
	err := r.db.Where("module_id = ?", moduleID).Order("sort_order ASC").Find(&lessons).Error
	return lessons, err
}

// Update updates an existing lesson in the database
func (r *lessonRepository) Update(lesson *models.Lesson) error {
	return r.db.Save(lesson).Error
}

// Delete soft deletes a lesson by its ID
func (r *lessonRepository) Delete(id uint) error {
	return r.db.Delete(&models.Lesson{}, id).Error
}

// GetResources retrieves all downloadable resources for a lesson
func (r *lessonRepository) GetResources(lessonID uint) ([]models.LessonResource, error) {
	var resources []models.LessonResource
	err := r.db.Where("lesson_id = ?", lessonID).Order("name ASC").Find(&resources).Error
	return resources, err
}

// GetResourceByUUID retrieves a single resource by its public UUID
func (r *lessonRepository) GetResourceByUUID(uuid string) (*models.LessonResource, error) {
	var resource models.LessonResource
	err := r.db.Where("uuid = ?", uuid).First(&resource).Error
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

// CreateResource attaches a new downloadable resource to a lesson
func (r *lessonRepository) CreateResource(resource *models.LessonResource) error {
	return r.db.Create(resource).Error
}

// DeleteResource removes a resource row; the object itself is cleaned up separately
func (r *lessonRepository) DeleteResource(id uint) error {
	return r.db.Delete(&models.LessonResource{}, id).Error
}
