package repository

import (
	"time"

	"github.com/LeVietHung/CNCademy/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	GetStatsByUserID(userID uint) (*UserStats, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// CourseRepository defines the interface for course-related database operations
type CourseRepository interface {
	Create(course *models.Course) error
	GetByID(id uint) (*models.Course, error)
	GetByUUID(uuid string) (*models.Course, error)
	GetBySlug(slug string) (*models.Course, error)
	GetPublished() ([]models.Course, error)
	GetAll(offset, limit int) ([]models.Course, error)
	Update(course *models.Course) error
	Delete(id uint) error
	Count() (int64, error)
	SlugExists(slug string) (bool, error)
	SlugExistsExceptID(slug string, id uint) (bool, error)
}

// LessonRepository defines the interface for lesson and resource operations
type LessonRepository interface {
	Create(lesson *models.Lesson) error
	GetByID(id uint) (*models.Lesson, error)
	GetByUUID(uuid string) (*models.Lesson, error)
	GetByModuleID(moduleID uint) ([]models.Lesson, error)
	Update(lesson *models.Lesson) error
	Delete(id uint) error
	GetResources(lessonID uint) ([]models.LessonResource, error)
	GetResourceByUUID(uuid string) (*models.LessonResource, error)
	CreateResource(resource *models.LessonResource) error
	DeleteResource(id uint) error
}

// ProgressRepository defines the interface for lesson completion tracking
type ProgressRepository interface {
	MarkCompleted(userID, lessonID uint) (*models.LessonProgress, error)
	ClearCompleted(userID, lessonID uint) error
	GetByUserAndLesson(userID, lessonID uint) (*models.LessonProgress, error)
	ListCompletedLessonIDs(userID uint, lessonIDs []uint) ([]uint, error)
	CountCompletedByUser(userID uint) (int64, error)
}

// QueueRepository defines the interface for cache/queue operations
type QueueRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// UserStats provides aggregated learning and billing counts for a single user.
type UserStats struct {
	CompletedLessons    int64
	ActiveSubscriptions int64
	LifetimePaid        float64
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	Course   CourseRepository
	Lesson   LessonRepository
	Progress ProgressRepository
	Queue    QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Course:   NewCourseRepository(db),
		Lesson:   NewLessonRepository(db),
		Progress: NewProgressRepository(db),
		Queue:    NewQueueRepository(),
	}
}
