package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/repository"
	"github.com/LeVietHung/CNCademy/internal/pkg/cache"
	"github.com/LeVietHung/CNCademy/internal/pkg/env"
	counter "github.com/LeVietHung/CNCademy/internal/pkg/metrics/counter"
	"github.com/LeVietHung/CNCademy/internal/pkg/resourcestore"
	"github.com/LeVietHung/CNCademy/internal/pkg/security"
	"github.com/LeVietHung/CNCademy/internal/pkg/usercontext"
)

// HandleCourseIndex lists the published course catalog. Public.
func HandleCourseIndex(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetCourseRepository()
	courses, err := repo.GetPublished()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load courses")
	}
	return c.JSON(fiber.Map{"courses": courses})
}

// lessonSummary is the catalog view of a lesson: enough to render the course
// outline without exposing gated content.
type lessonSummary struct {
	UUID          string `json:"uuid"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	DurationSecs  int    `json:"duration_secs"`
	IsFreePreview bool   `json:"is_free_preview"`
	SortOrder     int    `json:"sort_order"`
	Locked        bool   `json:"locked"`
	Completed     bool   `json:"completed"`
}

type moduleSummary struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	SortOrder int             `json:"sort_order"`
	Lessons   []lessonSummary `json:"lessons"`
}

// HandleCourseShow returns one course with its module/lesson outline. Lessons
// carry locked/completed flags for the requesting user; the outline itself is
// public so visitors can see what a course contains.
func HandleCourseShow(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "slug missing")
	}

	userCtx := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetCourseRepository()
	course, err := repo.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "course not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load course")
	}
	if !course.IsPublished && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusNotFound, "not_found", "course not found")
	}

	// Collect lesson ids for a single progress query.
	var lessonIDs []uint
	for _, module := range course.Modules {
		for _, lesson := range module.Lessons {
			lessonIDs = append(lessonIDs, lesson.ID)
		}
	}
	completed := map[uint]bool{}
	if userCtx.IsLoggedIn && len(lessonIDs) > 0 {
		progressRepo := repository.GetGlobalFactory().GetProgressRepository()
		ids, err := progressRepo.ListCompletedLessonIDs(userCtx.UserID, lessonIDs)
		if err != nil {
			log.Warnf("[Course] progress lookup failed for user %d: %v", userCtx.UserID, err)
		}
		for _, id := range ids {
			completed[id] = true
		}
	}

	modules := make([]moduleSummary, 0, len(course.Modules))
	for _, module := range course.Modules {
		lessons := make([]lessonSummary, 0, len(module.Lessons))
		for _, lesson := range module.Lessons {
			lessons = append(lessons, lessonSummary{
				UUID:          lesson.UUID,
				Title:         lesson.Title,
				Summary:       lesson.Summary,
				DurationSecs:  lesson.DurationSecs,
				IsFreePreview: lesson.IsFreePreview,
				SortOrder:     lesson.SortOrder,
				Locked:        !lesson.IsFreePreview && !userCtx.Entitled,
				Completed:     completed[lesson.ID],
			})
		}
		modules = append(modules, moduleSummary{
			ID:        module.ID,
			Title:     module.Title,
			SortOrder: module.SortOrder,
			Lessons:   lessons,
		})
	}

	return c.JSON(fiber.Map{
		"uuid":        course.UUID,
		"title":       course.Title,
		"slug":        course.Slug,
		"description": course.Description,
		"level":       course.Level,
		"modules":     modules,
	})
}

// HandleLessonShow returns the full lesson content including video URL and
// resources. Free-preview lessons are open to logged-in users; everything
// else requires an active subscription.
func HandleLessonShow(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "uuid missing")
	}

	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	repo := repository.GetGlobalFactory().GetLessonRepository()
	lesson, err := repo.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "lesson not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load lesson")
	}

	if !lesson.IsFreePreview && !userCtx.Entitled {
		return jsonError(c, fiber.StatusForbidden, "subscription_required", "an active subscription is required for this lesson")
	}

	completed := false
	progressRepo := repository.GetGlobalFactory().GetProgressRepository()
	if progress, err := progressRepo.GetByUserAndLesson(userCtx.UserID, lesson.ID); err == nil {
		completed = progress.CompletedAt != nil
	}

	if cache.HasClient() {
		if err := counter.AddLessonView(lesson.ID); err != nil {
			log.Warnf("[Course] view counter failed for lesson %s: %v", lesson.UUID, err)
		}
	}

	// Signed playback token for the video CDN, when configured.
	playbackToken := ""
	if secret := env.GetEnv("VIDEO_TOKEN_SECRET", ""); secret != "" && lesson.VideoURL != "" {
		token, err := security.GeneratePlaybackToken(userCtx.UserID, lesson.ID, 4*time.Hour, secret)
		if err != nil {
			log.Warnf("[Course] playback token failed for lesson %s: %v", lesson.UUID, err)
		} else {
			playbackToken = token
		}
	}

	return c.JSON(fiber.Map{
		"uuid":            lesson.UUID,
		"title":           lesson.Title,
		"summary":         lesson.Summary,
		"video_url":       lesson.VideoURL,
		"playback_token":  playbackToken,
		"duration_secs":   lesson.DurationSecs,
		"is_free_preview": lesson.IsFreePreview,
		"completed":       completed,
		"resources":       lesson.Resources,
	})
}

// HandleLessonComplete marks a lesson as completed for the logged-in user.
func HandleLessonComplete(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	lesson, err := repository.GetGlobalFactory().GetLessonRepository().GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "lesson not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load lesson")
	}
	if !lesson.IsFreePreview && !userCtx.Entitled {
		return jsonError(c, fiber.StatusForbidden, "subscription_required", "an active subscription is required for this lesson")
	}

	progress, err := repository.GetGlobalFactory().GetProgressRepository().MarkCompleted(userCtx.UserID, lesson.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not save progress")
	}

	return c.JSON(fiber.Map{"completed": true, "completed_at": progress.CompletedAt})
}

// HandleLessonUncomplete clears the completion mark for a lesson.
func HandleLessonUncomplete(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	lesson, err := repository.GetGlobalFactory().GetLessonRepository().GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "lesson not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load lesson")
	}

	if err := repository.GetGlobalFactory().GetProgressRepository().ClearCompleted(userCtx.UserID, lesson.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not update progress")
	}

	return c.JSON(fiber.Map{"completed": false})
}

// HandleResourceDownload hands out a short-lived presigned URL for a lesson
// resource. Gating follows the owning lesson: free-preview resources are open
// to logged-in users, everything else needs an active subscription.
func HandleResourceDownload(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	lessonRepo := repository.GetGlobalFactory().GetLessonRepository()
	resource, err := lessonRepo.GetResourceByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "resource not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load resource")
	}

	lesson, err := lessonRepo.GetByID(resource.LessonID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load lesson")
	}
	if !lesson.IsFreePreview && !userCtx.Entitled {
		return jsonError(c, fiber.StatusForbidden, "subscription_required", "an active subscription is required for this download")
	}

	store := resourcestore.Get()
	if store == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "resource_store_unavailable", "downloads are temporarily unavailable")
	}

	url, err := store.PresignDownloadURL(resource.ObjectKey, resource.Name, resourcestore.DefaultPresignExpiry)
	if err != nil {
		log.Errorf("[Course] presign failed for resource %s: %v", resource.UUID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create download link")
	}

	if cache.HasClient() {
		if err := counter.AddResourceDownload(resource.ID); err != nil {
			log.Warnf("[Course] download counter failed for resource %s: %v", resource.UUID, err)
		}
	}

	return c.JSON(fiber.Map{
		"url":        url,
		"name":       resource.Name,
		"size_bytes": resource.SizeBytes,
		"mime_type":  resource.MimeType,
	})
}
