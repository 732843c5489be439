package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	RegistrationStatusUnpaid              = "unpaid"
	RegistrationStatusPendingConfirmation = "pending_confirmation"
	RegistrationStatusPaidConfirmed       = "paid_confirmed"
)

// Reason codes stored in Registration.StatusReason.
const (
	ReasonDeclined       = "declined"
	ReasonInvalidDetails = "invalid_details"
	ReasonPendingTimeout = "pending_timeout"
)

// Registration is an attendee's conference registration together with the
// payment status projected from its payment transactions.
type Registration struct {
	ID              uint             `gorm:"primaryKey" json:"-"`
	RegistrationID  string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"registration_id" validate:"required,max=64"`
	AttendeeID      string           `gorm:"type:varchar(64);not null;index" json:"attendee_id" validate:"max=64"`
	Category        string           `gorm:"type:varchar(50);not null;default:''" json:"category" validate:"max=50"`
	FeeAmount       *decimal.Decimal `gorm:"type:decimal(12,2);default:null" json:"fee_amount"`
	Status          string           `gorm:"type:varchar(32);not null;default:'unpaid';index" json:"status"`
	StatusReason    string           `gorm:"type:varchar(64);not null;default:''" json:"status_reason"`
	StatusUpdatedAt *time.Time       `gorm:"type:timestamp;default:null" json:"status_updated_at,omitempty"`
}

var validate = validator.New()

func (r *Registration) Validate() error {
	return validate.Struct(r)
}

// Normalize coerces the status into the known enumeration and drops a
// negative fee.
func (r *Registration) Normalize() {
	r.RegistrationID = strings.TrimSpace(r.RegistrationID)
	r.Status = NormalizeRegistrationStatus(r.Status)
	r.FeeAmount = NormalizeAmount(r.FeeAmount)
}

// NormalizeRegistrationStatus maps unknown input to unpaid.
func NormalizeRegistrationStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case RegistrationStatusPendingConfirmation:
		return RegistrationStatusPendingConfirmation
	case RegistrationStatusPaidConfirmed:
		return RegistrationStatusPaidConfirmed
	default:
		return RegistrationStatusUnpaid
	}
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (r Registration) Clone() *Registration {
	c := r
	if r.FeeAmount != nil {
		fee := *r.FeeAmount
		c.FeeAmount = &fee
	}
	if r.StatusUpdatedAt != nil {
		ts := *r.StatusUpdatedAt
		c.StatusUpdatedAt = &ts
	}
	return &c
}
