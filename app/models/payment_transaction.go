package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusInitiated           = "initiated"
	PaymentStatusPendingConfirmation = "pending_confirmation"
	PaymentStatusSucceeded           = "succeeded"
	PaymentStatusFailed              = "failed"
	PaymentStatusDeclined            = "declined"
)

const DefaultCurrency = "USD"

// PaymentTransaction is one attempt to pay a registration fee, identified
// externally by its gateway reference.
type PaymentTransaction struct {
	ID               uint             `gorm:"primaryKey" json:"-"`
	PaymentID        string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"payment_id"`
	RegistrationID   string           `gorm:"type:varchar(64);not null;index:idx_payment_transactions_registration_created,priority:1" json:"registration_id"`
	Amount           *decimal.Decimal `gorm:"type:decimal(12,2);default:null" json:"amount"`
	Currency         string           `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Status           string           `gorm:"type:varchar(32);not null;index" json:"status"`
	CreatedAt        time.Time        `gorm:"index:idx_payment_transactions_registration_created,priority:2" json:"created_at"`
	ConfirmedAt      *time.Time       `gorm:"type:timestamp;default:null" json:"confirmed_at,omitempty"`
	GatewayReference string           `gorm:"type:varchar(191);not null;default:'';index" json:"gateway_reference"`
}

// IsSettled reports whether the transaction already reached a terminal status.
func (p *PaymentTransaction) IsSettled() bool {
	switch p.Status {
	case PaymentStatusInitiated, PaymentStatusPendingConfirmation:
		return false
	default:
		return true
	}
}

// Clone returns a deep copy.
func (p PaymentTransaction) Clone() *PaymentTransaction {
	c := p
	if p.Amount != nil {
		amount := *p.Amount
		c.Amount = &amount
	}
	if p.ConfirmedAt != nil {
		ts := *p.ConfirmedAt
		c.ConfirmedAt = &ts
	}
	return &c
}

// NormalizePaymentStatus maps unknown stored values to initiated.
func NormalizePaymentStatus(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case PaymentStatusPendingConfirmation, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusDeclined:
		return s
	default:
		return PaymentStatusInitiated
	}
}

// NormalizeCurrency returns an upper-case three letter code, or the default.
func NormalizeCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) != 3 {
		return DefaultCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return DefaultCurrency
		}
	}
	return c
}

// NormalizeAmount drops negative amounts; absent stays absent.
func NormalizeAmount(amount *decimal.Decimal) *decimal.Decimal {
	if amount == nil || amount.IsNegative() {
		return nil
	}
	a := *amount
	return &a
}

// ParseAmount parses a decimal string. Negative or non-numeric input yields nil.
func ParseAmount(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return NormalizeAmount(&d)
}

// PaymentGatewayReference is the uniqueness index for gateway references.
// A row exists for every payment created with a non-empty reference.
type PaymentGatewayReference struct {
	GatewayReference string    `gorm:"type:varchar(191);primaryKey" json:"gateway_reference"`
	PaymentID        string    `gorm:"type:varchar(64);not null" json:"payment_id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
