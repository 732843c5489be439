package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ConfDesk/app/models"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/audit"
)

func TestNormalizeIncomingStatus(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"  ":                   "",
		"succeeded":            models.PaymentStatusSucceeded,
		"Success":              models.PaymentStatusSucceeded,
		"COMPLETED":            models.PaymentStatusSucceeded,
		"pending":              models.PaymentStatusPendingConfirmation,
		"pending_confirmation": models.PaymentStatusPendingConfirmation,
		"initiated":            models.PaymentStatusInitiated,
		"declined":             models.PaymentStatusDeclined,
		"failed":               models.PaymentStatusFailed,
		"chargeback":           models.PaymentStatusFailed,
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeIncomingStatus(in), in)
	}
}

func TestRegistrationStatusFor(t *testing.T) {
	status, reason := registrationStatusFor(models.PaymentStatusDeclined)
	assert.Equal(t, models.RegistrationStatusUnpaid, status)
	assert.Equal(t, models.ReasonDeclined, reason)

	status, reason = registrationStatusFor(models.PaymentStatusFailed)
	assert.Equal(t, models.RegistrationStatusUnpaid, status)
	assert.Equal(t, models.ReasonInvalidDetails, reason)

	status, reason = registrationStatusFor(models.PaymentStatusInitiated)
	assert.Equal(t, models.RegistrationStatusPendingConfirmation, status)
	assert.Empty(t, reason)
}

func TestEventFor(t *testing.T) {
	assert.Equal(t, audit.EventConfirmed, eventFor(models.PaymentStatusSucceeded))
	for _, status := range []string{
		models.PaymentStatusFailed,
		models.PaymentStatusDeclined,
		models.PaymentStatusPendingConfirmation,
		models.PaymentStatusInitiated,
	} {
		assert.Equal(t, audit.EventFailed, eventFor(status), status)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PAYMENT_PENDING_TIMEOUT", "90m")
	t.Setenv("PAYMENT_DEFAULT_CURRENCY", "chf")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "whsec")

	cfg := LoadConfig()
	assert.Equal(t, 90*time.Minute, cfg.PendingTimeout)
	assert.Equal(t, "CHF", cfg.DefaultCurrency)
	assert.Equal(t, "whsec", cfg.WebhookSecret)

	svc := NewService(nil, cfg.Options()...)
	assert.Equal(t, 90*time.Minute, svc.pendingTimeout)
	assert.Equal(t, "CHF", svc.currency)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PAYMENT_PENDING_TIMEOUT", "")
	t.Setenv("PAYMENT_DEFAULT_CURRENCY", "")

	cfg := LoadConfig()
	assert.Equal(t, DefaultPendingTimeout, cfg.PendingTimeout)
	assert.Equal(t, models.DefaultCurrency, cfg.DefaultCurrency)
}

func TestNewGatewayReferenceIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ref := NewGatewayReference()
		require.False(t, seen[ref])
		assert.Regexp(t, `^gw_[0-9a-f]{32}$`, ref)
		seen[ref] = true
	}
}
