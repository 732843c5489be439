package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ConfDesk/app/controllers"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer serves the public v1 API described in public/docs/v1/openapi.yml.
type APIServer struct {
	payments *controllers.PaymentController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(payments *controllers.PaymentController) *APIServer {
	return &APIServer{payments: payments}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

func (s *APIServer) PostRegistrationPayment(c *fiber.Ctx) error {
	return s.payments.HandleInitiate(c)
}

func (s *APIServer) GetRegistrationPayments(c *fiber.Ctx) error {
	return s.payments.HandleRecords(c)
}

func (s *APIServer) GetRegistrationPaymentStatus(c *fiber.Ctx) error {
	return s.payments.HandleStatus(c)
}

func (s *APIServer) GetRegistrationPaymentSummary(c *fiber.Ctx) error {
	return s.payments.HandleSummary(c)
}

// PostPaymentCallback receives gateway confirmations. The route carries its
// own limiter, see router.ApiRouter.
func (s *APIServer) PostPaymentCallback(c *fiber.Ctx) error {
	return s.payments.HandleConfirm(c)
}

// RegisterHandlers mounts every v1 operation on router. Extra handlers run
// before the callback operation.
func RegisterHandlers(router fiber.Router, s *APIServer, callbackMiddleware ...fiber.Handler) {
	router.Get("/ping", s.GetPing)
	router.Post("/registrations/:id/payments", s.PostRegistrationPayment)
	router.Get("/registrations/:id/payments", s.GetRegistrationPayments)
	router.Get("/registrations/:id/payment-status", s.GetRegistrationPaymentStatus)
	router.Get("/registrations/:id/payment-summary", s.GetRegistrationPaymentSummary)

	handlers := append([]fiber.Handler{}, callbackMiddleware...)
	router.Post("/payments/callback", append(handlers, s.PostPaymentCallback)...)
}
