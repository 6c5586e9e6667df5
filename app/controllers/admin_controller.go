package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/app/repository"
	"github.com/LeVietHung/CNCademy/internal/pkg/constants"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
	"github.com/LeVietHung/CNCademy/internal/pkg/mail"
	"github.com/LeVietHung/CNCademy/internal/pkg/statistics"
)

var adminUserRepo repository.UserRepository
var adminQueueRepo repository.QueueRepository

// InitializeAdminController wires the repositories used by the admin
// operations endpoints.
func InitializeAdminController() {
	factory := repository.GetGlobalFactory()
	adminUserRepo = factory.GetUserRepository()
	adminQueueRepo = factory.GetQueueRepository()
}

// HandleAdminDashboard returns platform-wide counters and the registration
// trend for the last 30 days.
func HandleAdminDashboard(c *fiber.Ctx) error {
	db := database.GetDB()
	stats := statistics.GetStatisticsData()

	var courseCount, lessonCount, activeSubs int64
	db.Model(&models.Course{}).Count(&courseCount)
	db.Model(&models.Lesson{}).Count(&lessonCount)
	db.Model(&models.Subscription{}).
		Where("status IN ?", []models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusPastDue}).
		Count(&activeSubs)

	end := time.Now()
	start := end.AddDate(0, 0, -30)
	daily, err := adminUserRepo.GetDailyStats(start, end)
	if err != nil {
		log.Warnf("[Admin] daily stats query failed: %v", err)
	}

	return c.JSON(fiber.Map{
		"users":                stats.TotalUsers,
		"signups_today":        stats.TodaySignups,
		"completed_lessons":    stats.TotalCompletions,
		"courses":              courseCount,
		"lessons":              lessonCount,
		"active_subscriptions": activeSubs,
		"registrations_daily":  daily,
	})
}

// HandleAdminUsers lists users with optional search and pagination.
func HandleAdminUsers(c *fiber.Ctx) error {
	if query := strings.TrimSpace(c.Query("q")); query != "" {
		users, err := adminUserRepo.Search(query)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "search failed")
		}
		return c.JSON(fiber.Map{"users": users, "total": len(users)})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := constants.AdminPageSize
	users, err := adminUserRepo.List((page-1)*perPage, perPage)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load users")
	}
	total, _ := adminUserRepo.Count()
	return c.JSON(fiber.Map{"users": users, "total": total, "page": page})
}

type adminUserUpdateRequest struct {
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

// HandleAdminUserUpdate changes role, status or display name of a user.
func HandleAdminUserUpdate(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid user id")
	}
	user, err := adminUserRepo.GetByID(uint(id))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
	}

	var req adminUserUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if req.Name != nil && *req.Name != "" {
		user.Name = *req.Name
	}
	if req.Role != nil {
		switch *req.Role {
		case models.ROLE_STUDENT, models.ROLE_INSTRUCTOR, models.ROLE_ADMIN:
			user.Role = *req.Role
		default:
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "unknown role")
		}
	}
	if req.Status != nil {
		switch *req.Status {
		case models.STATUS_ACTIVE, models.STATUS_INACTIVE, models.STATUS_DISABLED:
			user.Status = *req.Status
		default:
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "unknown status")
		}
	}

	if err := adminUserRepo.Update(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not update user")
	}

	// A disabled account must lose gated access immediately.
	entitlements.InvalidateCache(user.ID)

	return c.JSON(user)
}

// HandleAdminResendActivation re-sends the activation mail for an inactive
// account.
func HandleAdminResendActivation(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid user id")
	}
	user, err := adminUserRepo.GetByID(uint(id))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
	}
	if user.Status != models.STATUS_INACTIVE {
		return jsonError(c, fiber.StatusConflict, "already_active", "account does not need activation")
	}

	if user.ActivationToken == "" {
		if err := user.GenerateActivationToken(); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not generate activation token")
		}
		if err := adminUserRepo.Update(user); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not refresh activation token")
		}
	}

	go func(u models.User) {
		if err := mail.SendActivationMail(u.Email, u.Name, u.ActivationToken); err != nil {
			log.Errorf("[Admin] activation mail to %s failed: %v", u.Email, err)
		}
	}(*user)

	return c.JSON(fiber.Map{"sent": true})
}

// HandleAdminQueues lists cache and queue keys matching the platform's
// well-known prefixes.
func HandleAdminQueues(c *fiber.Ctx) error {
	patterns := []string{
		constants.CachePatternEntitlements,
		constants.CachePatternSessions,
		constants.CachePatternOAuth,
		constants.CachePatternStatistics,
		constants.CachePatternCounters,
	}
	keys, err := adminQueueRepo.FindKeysByPatterns(patterns)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not scan keys")
	}

	type keyInfo struct {
		Key string `json:"key"`
		TTL string `json:"ttl"`
	}
	infos := make([]keyInfo, 0, len(keys))
	for _, key := range keys {
		ttl, err := adminQueueRepo.GetTTL(key)
		ttlStr := "-"
		if err == nil && ttl > 0 {
			ttlStr = ttl.Round(time.Second).String()
		}
		infos = append(infos, keyInfo{Key: key, TTL: ttlStr})
	}

	return c.JSON(fiber.Map{"keys": infos, "total": len(infos)})
}

// HandleAdminQueueDelete removes a single cache key.
func HandleAdminQueueDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "key missing")
	}
	deleted, err := adminQueueRepo.DeleteKey(key)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not delete key")
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

type queueBulkDeleteRequest struct {
	Keys []string `json:"keys"`
}

// HandleAdminQueueBulkDelete removes a batch of cache keys.
func HandleAdminQueueBulkDelete(c *fiber.Ctx) error {
	var req queueBulkDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}
	if len(req.Keys) == 0 {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "keys are required")
	}
	deleted, err := adminQueueRepo.DeleteKeys(req.Keys)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not delete keys")
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// HandleAdminWebhookEvents lists recent billing webhook deliveries for
// debugging reconciliation problems.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage := constants.AdminPageSize

	var events []models.BillingWebhookEvent
	err := database.GetDB().
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&events).Error
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load webhook events")
	}

	type eventSummary struct {
		ID              uint       `json:"id"`
		ProviderEventID string     `json:"provider_event_id"`
		EventType       string     `json:"event_type"`
		SignatureValid  bool       `json:"signature_valid"`
		ProcessedAt     *time.Time `json:"processed_at"`
		ProcessingError string     `json:"processing_error"`
		ReceivedAt      time.Time  `json:"received_at"`
	}
	summaries := make([]eventSummary, 0, len(events))
	for _, ev := range events {
		summaries = append(summaries, eventSummary{
			ID:              ev.ID,
			ProviderEventID: ev.ProviderEventID,
			EventType:       ev.EventType,
			SignatureValid:  ev.SignatureValid,
			ProcessedAt:     ev.ProcessedAt,
			ProcessingError: ev.ProcessingError,
			ReceivedAt:      ev.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"events": summaries, "page": page})
}
