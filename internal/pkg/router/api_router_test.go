package router

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ConfDesk/app/controllers"
	"github.com/ManuelReschke/ConfDesk/app/models"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/ledger"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/payments"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/ratelimit"
)

func TestApiRouterRoutes(t *testing.T) {
	store := ledger.NewMemoryStore()
	fee := decimal.NewFromInt(75)
	require.NoError(t, store.SaveRegistration(t.Context(), &models.Registration{RegistrationID: "R9", FeeAmount: &fee}))

	app := fiber.New()
	r := &ApiRouter{
		payments: controllers.NewPaymentController(payments.NewService(store), ""),
		limits:   ratelimit.Config{Storage: ratelimit.StorageMemory, Max: 1, Expiration: time.Minute},
	}
	setup(app, r)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/api/v1/registrations/R9/payments", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/registrations/R9/payment-status", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "ok", body["outcome"])

	callback := func() int {
		req := httptest.NewRequest(fiber.MethodPost, "/api/v1/payments/callback", strings.NewReader(`{"registration_id":"R9","gateway_reference":"gw_r"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusOK, callback())
	assert.Equal(t, fiber.StatusTooManyRequests, callback())
}
