package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/internal/pkg/billing"
	"github.com/LeVietHung/CNCademy/internal/pkg/cache"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/env"
	"github.com/LeVietHung/CNCademy/internal/pkg/hcaptcha"
	"github.com/LeVietHung/CNCademy/internal/pkg/jobqueue"
	"github.com/LeVietHung/CNCademy/internal/pkg/mail"
	"github.com/LeVietHung/CNCademy/internal/pkg/session"
)

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a new student account and sends the activation
// mail. Registration never waits on the billing provider; any pre-purchase
// catch-up runs in the background.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	// Captcha is enforced whenever a secret is configured.
	if env.GetEnv("HCAPTCHA_SECRET", "") != "" {
		valid, err := hcaptcha.Verify(req.CaptchaToken)
		if err != nil || !valid {
			log.Warnf("[Auth] captcha validation failed: %v", err)
			return jsonError(c, fiber.StatusBadRequest, "captcha_failed", "captcha validation failed")
		}
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := user.GenerateActivationToken(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create activation token")
	}

	db := database.GetDB()
	if err := db.Create(user).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return jsonError(c, fiber.StatusConflict, "email_taken", "an account with this email already exists")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create account")
	}

	// Mail delivery goes through the job queue so SMTP hiccups get retried;
	// without redis we fall back to a fire-and-forget send.
	if cache.HasClient() {
		if _, err := jobqueue.EnqueueActivationMail(user.Email, user.Name, user.ActivationToken); err != nil {
			log.Errorf("[Auth] failed to enqueue activation mail: %v", err)
		}
	} else {
		go func(email, name, token string) {
			if err := mail.SendActivationMail(email, name, token); err != nil {
				log.Errorf("[Auth] failed to send activation mail to user: %v", err)
			}
		}(user.Email, user.Name, user.ActivationToken)
	}

	// Catch up subscriptions bought before the account existed.
	go reconcileBillingBestEffort(user.ID, user.Email)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      user.ID,
		"email":   user.Email,
		"message": "account created, please confirm your email address",
	})
}

// HandleAuthActivate confirms the email address behind an activation token.
func HandleAuthActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "token missing")
	}

	db := database.GetDB()
	var user models.User
	if err := db.Where("activation_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "invalid_token", "activation token is invalid or already used")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "activation failed")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	user.ActivationSentAt = nil
	if err := db.Save(&user).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "activation failed")
	}

	return c.JSON(fiber.Map{"message": "account activated, you can log in now"})
}

// HandleAuthLogin authenticates with email and password and establishes the
// session. Subscription catch-up is best-effort and never blocks the login.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid JSON body")
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	var user models.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		return jsonError(c, fiber.StatusUnauthorized, "login_failed", "there is a problem with the login process")
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "login_failed", "there is a problem with the login process")
	}

	if user.Status == models.STATUS_DISABLED {
		return jsonError(c, fiber.StatusForbidden, "account_disabled", "this account is disabled")
	}
	if user.Status == models.STATUS_INACTIVE {
		return jsonError(c, fiber.StatusForbidden, "account_not_activated", "please confirm your email address first")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", fmt.Sprintf("something went wrong: %s", err))
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_EMAIL, user.Email)
	sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)

	if err := sess.Save(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", fmt.Sprintf("something went wrong: %s", err))
	}

	database.GetDB().Model(&user).Update("last_login_at", time.Now())

	ipv4, _ := GetClientIP(c)
	log.Infof("[Auth] user %d logged in from %s", user.ID, ipv4)

	go reconcileBillingBestEffort(user.ID, user.Email)

	return c.JSON(fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	})
}

// HandleAuthLogout destroys the current session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "logged out (no session)")
	}

	if err := sess.Destroy(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", fmt.Sprintf("something went wrong: %s", err))
	}

	c.Locals(FROM_PROTECTED, false)

	return c.JSON(fiber.Map{"message": "logged out"})
}

// reconcileBillingBestEffort pulls the user's subscription state from the
// billing provider. Failures are logged and swallowed; sign-in/sign-up must
// never fail because the provider is down. When redis is available a failed
// attempt is handed to the job queue for retries.
func reconcileBillingBestEffort(userID uint, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	if res := svc.ReconcileForUser(ctx, userID, email); !res.Success {
		log.Warnf("[Auth] billing catch-up failed for user %d: %v", userID, res.Err)
		if cache.HasClient() {
			if _, err := jobqueue.EnqueueBillingReconcile(userID, email); err != nil {
				log.Errorf("[Auth] failed to enqueue billing reconcile for user %d: %v", userID, err)
			}
		}
	}
}
