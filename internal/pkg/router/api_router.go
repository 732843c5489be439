package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ConfDesk/app/controllers"
	apiv1 "github.com/ManuelReschke/ConfDesk/internal/api/v1"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/middleware"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/ratelimit"
)

type ApiRouter struct {
	payments *controllers.PaymentController
	limits   ratelimit.Config
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", middleware.ActorContextMiddleware)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(h.payments)
	apiv1.RegisterHandlers(v1, apiServer, ratelimit.New(h.limits))
}

func NewApiRouter(payments *controllers.PaymentController) *ApiRouter {
	return &ApiRouter{payments: payments, limits: ratelimit.LoadConfig()}
}
