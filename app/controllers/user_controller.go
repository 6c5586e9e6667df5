package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/app/repository"
	"github.com/LeVietHung/CNCademy/internal/pkg/constants"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
	"github.com/LeVietHung/CNCademy/internal/pkg/session"
	"github.com/LeVietHung/CNCademy/internal/pkg/usercontext"
	"github.com/LeVietHung/CNCademy/internal/pkg/utils"
)

// HandleUserProfile returns the logged-in user's account with learning and
// billing statistics.
func HandleUserProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
	}

	stats, err := repo.GetStatsByUserID(user.ID)
	if err != nil {
		log.Warnf("[User] stats lookup failed for user %d: %v", user.ID, err)
		stats = &repository.UserStats{}
	}

	avatarURL := user.AvatarURL
	if avatarURL == "" {
		avatarURL = utils.GetGravatarURL(user.Email, 200)
	}

	return c.JSON(fiber.Map{
		"id":                   user.ID,
		"name":                 user.Name,
		"email":                user.Email,
		"role":                 user.Role,
		"avatar_url":           avatarURL,
		"created_at":           user.CreatedAt,
		"entitled":             userCtx.Entitled,
		"completed_lessons":    stats.CompletedLessons,
		"active_subscriptions": stats.ActiveSubscriptions,
		"lifetime_paid":        stats.LifetimePaid,
	})
}

// HandleUserSettingsGet returns the user's preferences and API key metadata.
func HandleUserSettingsGet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	settings, err := models.GetOrCreateUserSettings(database.GetDB(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load settings")
	}

	return c.JSON(settings)
}

type settingsRequest struct {
	EmailNotifications *bool   `json:"email_notifications"`
	LessonLanguage     *string `json:"lesson_language"`
}

// HandleUserSettingsUpdate updates preference fields. API key fields are
// managed through the dedicated key endpoints only.
func HandleUserSettingsUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load settings")
	}

	if req.EmailNotifications != nil {
		settings.EmailNotifications = *req.EmailNotifications
	}
	if req.LessonLanguage != nil {
		lang := *req.LessonLanguage
		if !constants.IsSupportedLessonLanguage(lang) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "unsupported lesson language")
		}
		settings.LessonLanguage = lang
	}

	if err := db.Save(settings).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not save settings")
	}

	return c.JSON(settings)
}

// HandleUserAPIKeyGenerate issues a fresh API key. The raw secret is returned
// exactly once; only its hash is stored.
func HandleUserAPIKeyGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load settings")
	}

	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not generate API key")
	}
	if err := db.Save(settings).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not save API key")
	}

	return c.JSON(fiber.Map{
		"api_key":        rawKey,
		"api_key_prefix": settings.APIKeyPrefix,
		"created_at":     settings.APIKeyCreatedAt,
	})
}

// HandleUserAPIKeyRevoke disables the current API key.
func HandleUserAPIKeyRevoke(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load settings")
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not revoke API key")
	}

	return c.JSON(fiber.Map{"revoked": true})
}

// HandleUserAccountDelete anonymizes the account. Subscription and payment
// rows are retained for compliance, still pointing at the anonymized user id;
// login identities, progress and the API key are removed.
func HandleUserAccountDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	db := database.GetDB()
	var user models.User
	if err := db.First(&user, userCtx.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load user")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		user.Anonymize()
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.ProviderAccount{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.LessonProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserSettings{}).Error; err != nil {
			return err
		}
		// Soft delete keeps the anonymized row for the retained billing
		// records while dropping it from every default-scoped query.
		return tx.Delete(&user).Error
	})
	if err != nil {
		log.Errorf("[User] account deletion failed for user %d: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "account deletion failed")
	}

	entitlements.InvalidateCache(user.ID)

	if sess, err := session.GetSessionStore().Get(c); err == nil {
		_ = sess.Destroy()
	}

	return c.JSON(fiber.Map{"deleted": true})
}
