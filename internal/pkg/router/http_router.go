package router

import (
	"github.com/LeVietHung/CNCademy/app/controllers"
	"github.com/LeVietHung/CNCademy/app/repository"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/middleware"
	"github.com/LeVietHung/CNCademy/internal/pkg/oauth"
	"github.com/LeVietHung/CNCademy/internal/pkg/resourcestore"
	"github.com/LeVietHung/CNCademy/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// init repositories and the resource store before any controller runs
	repository.InitializeFactory(database.GetDB())
	resourcestore.Initialize()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Initialize admin controllers with repositories
	controllers.InitializeAdminController()
	controllers.InitializeAdminCourseController()

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context
	// This middleware now just passes through - no additional logic needed
	// All user information is available via usercontext.GetUserContext(c)
	return c.Next()
}

// Auth middlewares moved to internal/pkg/middleware/auth.go
