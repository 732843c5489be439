package payments

import (
	"time"

	"github.com/ManuelReschke/ConfDesk/app/models"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/env"
)

// DefaultPendingTimeout is how long a registration may wait for a gateway
// confirmation before it reverts to unpaid.
const DefaultPendingTimeout = 24 * time.Hour

// Config holds the payment settings read from the environment.
type Config struct {
	PendingTimeout  time.Duration
	DefaultCurrency string
	WebhookSecret   string
}

// LoadConfig reads PAYMENT_* settings.
func LoadConfig() Config {
	return Config{
		PendingTimeout:  env.GetDuration("PAYMENT_PENDING_TIMEOUT", DefaultPendingTimeout),
		DefaultCurrency: models.NormalizeCurrency(env.GetEnv("PAYMENT_DEFAULT_CURRENCY", models.DefaultCurrency)),
		WebhookSecret:   env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
	}
}

// Options converts the config into service options.
func (c Config) Options() []Option {
	return []Option{
		WithPendingTimeout(c.PendingTimeout),
		WithCurrency(c.DefaultCurrency),
	}
}
