package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router is implemented by each route installer.
type Router interface {
	InstallRouter(app *fiber.App)
}
