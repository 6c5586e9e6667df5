package router

import (
	"github.com/LeVietHung/CNCademy/app/controllers"
	"github.com/LeVietHung/CNCademy/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)

	// User management
	adminGroup.Get("/users", controllers.HandleAdminUsers)
	adminGroup.Post("/users/update/:id", controllers.HandleAdminUserUpdate)
	adminGroup.Post("/users/resend-activation/:id", controllers.HandleAdminResendActivation)

	// Course content management
	adminGroup.Get("/courses", controllers.HandleAdminCourseList)
	adminGroup.Post("/courses", controllers.HandleAdminCourseCreate)
	adminGroup.Post("/courses/update/:uuid", controllers.HandleAdminCourseUpdate)
	adminGroup.Post("/courses/delete/:uuid", controllers.HandleAdminCourseDelete)
	adminGroup.Post("/courses/:uuid/modules", controllers.HandleAdminModuleCreate)
	adminGroup.Post("/lessons", controllers.HandleAdminLessonCreate)
	adminGroup.Post("/lessons/update/:uuid", controllers.HandleAdminLessonUpdate)
	adminGroup.Post("/lessons/:uuid/resources", controllers.HandleAdminResourceUpload)
	adminGroup.Post("/resources/delete/:uuid", controllers.HandleAdminResourceDelete)

	// Billing diagnostics
	adminGroup.Get("/billing/webhook-events", controllers.HandleAdminWebhookEvents)

	// Cache and queue monitor
	adminGroup.Get("/queues", controllers.HandleAdminQueues)
	adminGroup.Delete("/queues/delete/:key", controllers.HandleAdminQueueDelete)
	adminGroup.Post("/queues/bulk-delete", controllers.HandleAdminQueueBulkDelete)
}
