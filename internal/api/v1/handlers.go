package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/LeVietHung/CNCademy/app/controllers"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
	"github.com/LeVietHung/CNCademy/internal/pkg/entitlements"
	"github.com/LeVietHung/CNCademy/internal/pkg/usercontext"
)

// APIServer implements the ServerInterface
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// Pong is the ping response body
type Pong struct {
	Ping string `json:"ping"`
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetUserProfile returns account information for the authenticated user.
// Security is enforced via API key middleware attached in the router.
func (s *APIServer) GetUserProfile(c *fiber.Ctx) error {
	return controllers.HandleUserProfile(c)
}

// GetEntitlement returns the subscription verdict for the API key's user.
// Meant for companion tooling (e.g. a desktop post-processor plugin) that
// needs a cheap yes/no before unlocking premium features.
func (s *APIServer) GetEntitlement(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	entitled := entitlements.HasActiveSubscriptionCached(database.GetDB(), userCtx.UserID)
	return c.JSON(fiber.Map{"entitled": entitled})
}

// GetCourses returns the published course catalog
func (s *APIServer) GetCourses(c *fiber.Ctx) error {
	return controllers.HandleCourseIndex(c)
}

// GetCourse returns one course outline by slug
func (s *APIServer) GetCourse(c *fiber.Ctx) error {
	return controllers.HandleCourseShow(c)
}

// GetLesson returns lesson content; gating matches the web routes
func (s *APIServer) GetLesson(c *fiber.Ctx) error {
	return controllers.HandleLessonShow(c)
}

// PostLessonComplete marks a lesson as done for the API key's user
func (s *APIServer) PostLessonComplete(c *fiber.Ctx) error {
	return controllers.HandleLessonComplete(c)
}

// GetResourceDownload hands out a presigned download URL for a resource
func (s *APIServer) GetResourceDownload(c *fiber.Ctx) error {
	return controllers.HandleResourceDownload(c)
}
