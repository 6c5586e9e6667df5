package controllers

import (
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/app/repository"
	"github.com/LeVietHung/CNCademy/internal/pkg/constants"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/resourcestore"
	"github.com/LeVietHung/CNCademy/internal/pkg/upload"
)

var adminCourseRepo repository.CourseRepository
var adminLessonRepo repository.LessonRepository

// InitializeAdminCourseController wires the repositories used by the admin
// content endpoints.
func InitializeAdminCourseController() {
	factory := repository.GetGlobalFactory()
	adminCourseRepo = factory.GetCourseRepository()
	adminLessonRepo = factory.GetLessonRepository()
}

type courseRequest struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Level       string `json:"level"`
	IsPublished *bool  `json:"is_published"`
	SortOrder   *int   `json:"sort_order"`
}

// HandleAdminCourseList returns all courses including unpublished ones.
func HandleAdminCourseList(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := constants.AdminPageSize
	courses, err := adminCourseRepo.GetAll((page-1)*perPage, perPage)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load courses")
	}
	total, _ := adminCourseRepo.Count()
	return c.JSON(fiber.Map{"courses": courses, "total": total, "page": page})
}

// HandleAdminCourseCreate creates a new course.
func HandleAdminCourseCreate(c *fiber.Ctx) error {
	var req courseRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.Title == "" || req.Slug == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "title and slug are required")
	}
	if taken, err := adminCourseRepo.SlugExists(req.Slug); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "slug check failed")
	} else if taken {
		return jsonError(c, fiber.StatusConflict, "slug_taken", "a course with this slug already exists")
	}

	course := &models.Course{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Level:       firstNonEmpty(req.Level, "beginner"),
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}
	if req.SortOrder != nil {
		course.SortOrder = *req.SortOrder
	}

	if err := adminCourseRepo.Create(course); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create course")
	}
	return c.Status(fiber.StatusCreated).JSON(course)
}

// HandleAdminCourseUpdate updates course fields.
func HandleAdminCourseUpdate(c *fiber.Ctx) error {
	course, err := adminCourseRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "course not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load course")
	}

	var req courseRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.Slug != "" && req.Slug != course.Slug {
		if taken, err := adminCourseRepo.SlugExistsExceptID(req.Slug, course.ID); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "slug check failed")
		} else if taken {
			return jsonError(c, fiber.StatusConflict, "slug_taken", "a course with this slug already exists")
		}
		course.Slug = req.Slug
	}
	if req.Title != "" {
		course.Title = req.Title
	}
	if req.Description != "" {
		course.Description = req.Description
	}
	if req.Level != "" {
		course.Level = req.Level
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}
	if req.SortOrder != nil {
		course.SortOrder = *req.SortOrder
	}

	if err := adminCourseRepo.Update(course); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not update course")
	}
	return c.JSON(course)
}

// HandleAdminCourseDelete soft deletes a course.
func HandleAdminCourseDelete(c *fiber.Ctx) error {
	course, err := adminCourseRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "course not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load course")
	}
	if err := adminCourseRepo.Delete(course.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not delete course")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

type moduleRequest struct {
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
}

// HandleAdminModuleCreate adds a module to a course.
func HandleAdminModuleCreate(c *fiber.Ctx) error {
	course, err := adminCourseRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "course not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load course")
	}

	var req moduleRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.Title == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "title is required")
	}

	module := &models.CourseModule{
		CourseID:  course.ID,
		Title:     req.Title,
		SortOrder: req.SortOrder,
	}
	if err := database.GetDB().Create(module).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create module")
	}
	return c.Status(fiber.StatusCreated).JSON(module)
}

type lessonRequest struct {
	ModuleID      uint   `json:"module_id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	VideoURL      string `json:"video_url"`
	DurationSecs  int    `json:"duration_secs"`
	IsFreePreview *bool  `json:"is_free_preview"`
	SortOrder     *int   `json:"sort_order"`
}

// HandleAdminLessonCreate creates a lesson in a module.
func HandleAdminLessonCreate(c *fiber.Ctx) error {
	var req lessonRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.ModuleID == 0 || req.Title == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "module_id and title are required")
	}

	var module models.CourseModule
	if err := database.GetDB().First(&module, req.ModuleID).Error; err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "module not found")
	}

	lesson := &models.Lesson{
		ModuleID:     module.ID,
		Title:        req.Title,
		Summary:      req.Summary,
		VideoURL:     req.VideoURL,
		DurationSecs: req.DurationSecs,
	}
	if req.IsFreePreview != nil {
		lesson.IsFreePreview = *req.IsFreePreview
	}
	if req.SortOrder != nil {
		lesson.SortOrder = *req.SortOrder
	}

	if err := adminLessonRepo.Create(lesson); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create lesson")
	}
	return c.Status(fiber.StatusCreated).JSON(lesson)
}

// HandleAdminLessonUpdate updates lesson fields.
func HandleAdminLessonUpdate(c *fiber.Ctx) error {
	lesson, err := adminLessonRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "lesson not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load lesson")
	}

	var req lessonRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.Title != "" {
		lesson.Title = req.Title
	}
	if req.Summary != "" {
		lesson.Summary = req.Summary
	}
	if req.VideoURL != "" {
		lesson.VideoURL = req.VideoURL
	}
	if req.DurationSecs > 0 {
		lesson.DurationSecs = req.DurationSecs
	}
	if req.IsFreePreview != nil {
		lesson.IsFreePreview = *req.IsFreePreview
	}
	if req.SortOrder != nil {
		lesson.SortOrder = *req.SortOrder
	}

	if err := adminLessonRepo.Update(lesson); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not update lesson")
	}
	return c.JSON(lesson)
}

// HandleAdminResourceUpload attaches a downloadable file to a lesson. The
// file goes straight to object storage; only metadata lands in the database.
func HandleAdminResourceUpload(c *fiber.Ctx) error {
	lesson, err := adminLessonRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "lesson not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load lesson")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "file missing")
	}

	store := resourcestore.Get()
	if store == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "resource_store_unavailable", "uploads are temporarily unavailable")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not read upload")
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not read upload")
	}
	if _, err := upload.ValidateResourceBySniff(fileHeader.Filename, head[:n]); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "unsupported_file_type", err.Error())
	}

	resourceUUID := uuid.New().String()
	now := time.Now()
	cfg, err := resourcestore.LoadConfig()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "resource store misconfigured")
	}
	objectKey := cfg.GetObjectKey(resourceUUID, filepath.Ext(fileHeader.Filename), now.Year(), int(now.Month()))

	contentType := fileHeader.Header.Get("Content-Type")
	result, err := store.UploadResource(objectKey, file, fileHeader.Size, contentType)
	if err != nil {
		log.Errorf("[Admin] resource upload failed for lesson %s: %v", lesson.UUID, err)
		return jsonError(c, fiber.StatusBadGateway, "upload_failed", "could not store file")
	}

	resource := &models.LessonResource{
		UUID:      resourceUUID,
		LessonID:  lesson.ID,
		Name:      fileHeader.Filename,
		ObjectKey: result.ObjectKey,
		MimeType:  result.ContentType,
		SizeBytes: result.Size,
	}
	if err := adminLessonRepo.CreateResource(resource); err != nil {
		// Roll back the orphaned object best-effort.
		_ = store.DeleteResource(result.ObjectKey)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not save resource")
	}

	return c.Status(fiber.StatusCreated).JSON(resource)
}

// HandleAdminResourceDelete removes a resource and its stored object.
func HandleAdminResourceDelete(c *fiber.Ctx) error {
	resource, err := adminLessonRepo.GetResourceByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "resource not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load resource")
	}

	if store := resourcestore.Get(); store != nil {
		if err := store.DeleteResource(resource.ObjectKey); err != nil {
			log.Warnf("[Admin] could not delete stored object %s: %v", resource.ObjectKey, err)
		}
	}
	if err := adminLessonRepo.DeleteResource(resource.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not delete resource")
	}
	return c.JSON(fiber.Map{"deleted": true})
}
