package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ConfDesk/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, payments *controllers.PaymentController) {
	// The actor middleware must run before any API handler reads the
	// actor context.
	setup(app, NewApiRouter(payments))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
