package users

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// NewServer builds a fiber backed HTTP server preconfigured for the JSON
// API. Mount the routes with RegisterRoutes(srv.Router(), ...).
func NewServer(appName string) router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:       appName,
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})
}
