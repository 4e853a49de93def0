package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all route groups. The auth router goes first so the
// OAuth session store exists before any request hits the API surface.
func InstallRouter(app *fiber.App, reg *tenants.Registry) {
	setup(app, NewAuthRouter(reg), NewApiRouter(reg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
