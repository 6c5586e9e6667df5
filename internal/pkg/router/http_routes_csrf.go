package router

import (
	"strings"
	"time"

	"github.com/LeVietHung/CNCademy/app/controllers"
	"github.com/LeVietHung/CNCademy/internal/pkg/env"
	"github.com/LeVietHung/CNCademy/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			// API requests authenticate with keys, webhooks with signatures.
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))

	// Account lifecycle
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Get("/activate", loggedInMiddleware, controllers.HandleAuthActivate)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)

	// Profile and settings
	group.Get("/user/profile", middleware.RequireAuth, controllers.HandleUserProfile)
	group.Get("/user/settings", middleware.RequireAuth, controllers.HandleUserSettingsGet)
	group.Post("/user/settings", middleware.RequireAuth, controllers.HandleUserSettingsUpdate)
	group.Post("/user/settings/api-key", middleware.RequireAuth, controllers.HandleUserAPIKeyGenerate)
	group.Post("/user/settings/api-key/revoke", middleware.RequireAuth, controllers.HandleUserAPIKeyRevoke)
	group.Post("/user/account/delete", middleware.RequireAuth, controllers.HandleUserAccountDelete)

	// Lessons and progress. Entitlement gating happens per lesson in the
	// controller so free previews stay reachable.
	group.Get("/lessons/:uuid", middleware.RequireAuth, controllers.HandleLessonShow)
	group.Post("/lessons/:uuid/complete", middleware.RequireAuth, controllers.HandleLessonComplete)
	group.Post("/lessons/:uuid/uncomplete", middleware.RequireAuth, controllers.HandleLessonUncomplete)
	group.Get("/resources/:uuid/download", middleware.RequireAuth, controllers.HandleResourceDownload)

	// Billing
	group.Post("/billing/checkout", middleware.RequireAuth, controllers.HandleCreateCheckoutSession)
	group.Post("/billing/resync", middleware.RequireAuth, controllers.HandleBillingResync)
	group.Get("/billing/subscription", middleware.RequireAuth, controllers.HandleSubscriptionStatus)
	group.Get("/billing/payments", middleware.RequireAuth, controllers.HandlePaymentHistory)
}
