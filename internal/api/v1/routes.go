package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterHandlers wires the v1 endpoints onto the given router group.
// keyAuth is the API key middleware; /ping stays open for health probes.
func RegisterHandlers(router fiber.Router, s *APIServer, keyAuth fiber.Handler) {
	router.Get("/ping", s.GetPing)

	authed := router.Group("", keyAuth)
	authed.Get("/user/profile", s.GetUserProfile)
	authed.Get("/user/entitlement", s.GetEntitlement)
	authed.Get("/courses", s.GetCourses)
	authed.Get("/courses/:slug", s.GetCourse)
	authed.Get("/lessons/:uuid", s.GetLesson)
	authed.Post("/lessons/:uuid/complete", s.PostLessonComplete)
	authed.Get("/resources/:uuid/download", s.GetResourceDownload)
}
