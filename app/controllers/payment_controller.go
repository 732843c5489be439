package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/text/language"

	"github.com/ManuelReschke/ConfDesk/app/models"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/payments"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/paymentstatus"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/usercontext"
)

const (
	requestTimeout  = 15 * time.Second
	SignatureHeader = "X-Gateway-Signature"
	gatewayActorID  = "gateway"
)

var validate = validator.New()

// confirmPayload is the gateway callback body.
type confirmPayload struct {
	RegistrationID   string `json:"registration_id" validate:"required,max=64"`
	GatewayReference string `json:"gateway_reference" validate:"required,max=191"`
	Status           string `json:"status" validate:"omitempty,max=32"`
}

// PaymentController exposes the payment service over HTTP.
type PaymentController struct {
	service       *payments.Service
	webhookSecret string
	counter       *counter.Counter
}

// NewPaymentController creates the controller. An empty webhookSecret
// disables the callback signature check.
func NewPaymentController(service *payments.Service, webhookSecret string) *PaymentController {
	return &PaymentController{service: service, webhookSecret: webhookSecret}
}

// WithCounter makes the controller count every outcome.
func (pc *PaymentController) WithCounter(c *counter.Counter) *PaymentController {
	pc.counter = c
	return pc
}

// HandleInitiate starts a payment for the registration in the path.
func (pc *PaymentController) HandleInitiate(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := pc.service.Initiate(ctx, c.Params("id"), usercontext.GetActorID(c))
	pc.count(ctx, "initiate", res, err)
	if err != nil {
		return writeError(c, err)
	}

	code := fiber.StatusOK
	if res.Outcome == payments.OutcomeInitiated {
		code = fiber.StatusCreated
	}
	return c.Status(code).JSON(resultBody(c, res))
}

// HandleConfirm is the gateway callback. Redelivery is answered with 200
// and outcome duplicate_ignored.
func (pc *PaymentController) HandleConfirm(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.Body()...)
	if pc.webhookSecret != "" && !payments.VerifyWebhookSignature(rawBody, c.Get(SignatureHeader), pc.webhookSecret) {
		log.Warnf("[Payments] rejected callback with invalid signature from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	var payload confirmPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  string(payments.OutcomeValidationError),
			"fields": invalidFields(err),
		})
	}

	actorID := usercontext.GetActorID(c)
	if actorID == "" {
		actorID = gatewayActorID
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := pc.service.Confirm(ctx, payments.ConfirmRequest{
		RegistrationID:   payload.RegistrationID,
		GatewayReference: payload.GatewayReference,
		Status:           payload.Status,
		ActorID:          actorID,
	})
	pc.count(ctx, "confirm", res, err)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resultBody(c, res))
}

// HandleStatus returns the registration status with a display label.
func (pc *PaymentController) HandleStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := pc.service.Status(ctx, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resultBody(c, res))
}

// HandleRecords returns every payment attempt of the registration.
func (pc *PaymentController) HandleRecords(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := pc.service.Records(ctx, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	body := resultBody(c, res)
	list := res.Payments
	if list == nil {
		list = []models.PaymentTransaction{}
	}
	body["payments"] = list
	return c.JSON(body)
}

// HandleSummary returns the flat summary view.
func (pc *PaymentController) HandleSummary(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	sum, err := pc.service.Summary(ctx, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"summary": sum,
		"label":   paymentstatus.Translate(sum.Status, sum.StatusReason, requestLanguage(c)),
	})
}

func resultBody(c *fiber.Ctx, res *payments.Result) fiber.Map {
	body := fiber.Map{
		"outcome":      res.Outcome,
		"registration": res.Registration,
		"payment":      res.Payment,
	}
	if res.Registration != nil {
		body["label"] = paymentstatus.Translate(res.Registration.Status, res.Registration.StatusReason, requestLanguage(c))
	}
	return body
}

func requestLanguage(c *fiber.Ctx) language.Tag {
	if lang := usercontext.GetActorContext(c).Language; lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			return tag
		}
	}
	return paymentstatus.Match(c.Get(usercontext.HeaderAcceptLanguage))
}

func (pc *PaymentController) count(ctx context.Context, op string, res *payments.Result, err error) {
	if pc.counter == nil {
		return
	}
	outcome := payments.OutcomeOf(err)
	if err == nil && res != nil {
		outcome = res.Outcome
	}
	if cErr := pc.counter.Add(ctx, op, string(outcome)); cErr != nil {
		log.Warnf("[Payments] outcome counter update failed: %v", cErr)
	}
}

func writeError(c *fiber.Ctx, err error) error {
	outcome := payments.OutcomeOf(err)
	code := fiber.StatusServiceUnavailable
	switch outcome {
	case payments.OutcomeNotFound:
		code = fiber.StatusNotFound
	case payments.OutcomeValidationError:
		code = fiber.StatusBadRequest
	}
	return c.Status(code).JSON(fiber.Map{"error": string(outcome)})
}

func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}
