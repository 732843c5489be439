// Package ledger stores registrations and payment transactions behind three
// lookup paths (registration id, payment id, gateway reference) and is the
// only place where gateway reference uniqueness is enforced.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

var (
	ErrRegistrationNotFound      = errors.New("registration not found")
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrDuplicateGatewayReference = errors.New("duplicate gateway reference")
	ErrDuplicatePaymentID        = errors.New("duplicate payment id")
)

// PaymentInput describes a payment record to create. PaymentID is generated
// when empty and CreatedAt defaults to the current time.
type PaymentInput struct {
	PaymentID        string
	RegistrationID   string
	Amount           *decimal.Decimal
	Currency         string
	Status           string
	CreatedAt        time.Time
	ConfirmedAt      *time.Time
	GatewayReference string
}

// PaymentMutation edits a loaded payment. Changes to PaymentID,
// RegistrationID, GatewayReference and CreatedAt are discarded.
type PaymentMutation func(p *models.PaymentTransaction)

// Store is the ledger contract shared by all backends.
type Store interface {
	GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error)
	SaveRegistration(ctx context.Context, registration *models.Registration) error
	UpdateRegistrationStatus(ctx context.Context, registrationID, status, reasonCode string, updatedAt time.Time) (*models.Registration, error)

	CreatePaymentRecord(ctx context.Context, in PaymentInput) (*models.PaymentTransaction, error)
	UpdatePaymentRecord(ctx context.Context, paymentID string, mutate PaymentMutation) (*models.PaymentTransaction, error)
	FindPaymentByGatewayReference(ctx context.Context, gatewayReference string) (*models.PaymentTransaction, error)
	ListPaymentsByRegistration(ctx context.Context, registrationID string) ([]models.PaymentTransaction, error)
	LatestPayment(ctx context.Context, registrationID string) (*models.PaymentTransaction, error)

	SavePaymentAndRegistration(ctx context.Context, registrationID string, in PaymentInput, status, reasonCode string, updatedAt time.Time) (*models.PaymentTransaction, *models.Registration, error)
}

// newPaymentRecord builds the normalized record every backend persists.
func newPaymentRecord(in PaymentInput) *models.PaymentTransaction {
	id := strings.TrimSpace(in.PaymentID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	p := &models.PaymentTransaction{
		PaymentID:        id,
		RegistrationID:   strings.TrimSpace(in.RegistrationID),
		Amount:           models.NormalizeAmount(in.Amount),
		Currency:         models.NormalizeCurrency(in.Currency),
		Status:           models.NormalizePaymentStatus(in.Status),
		CreatedAt:        createdAt,
		GatewayReference: strings.TrimSpace(in.GatewayReference),
	}
	if in.ConfirmedAt != nil {
		ts := *in.ConfirmedAt
		p.ConfirmedAt = &ts
	}
	return p
}

// applyMutation runs mutate on a copy of current and restores the
// immutable identity fields afterwards.
func applyMutation(current *models.PaymentTransaction, mutate PaymentMutation) *models.PaymentTransaction {
	next := current.Clone()
	if mutate != nil {
		mutate(next)
	}
	next.ID = current.ID
	next.PaymentID = current.PaymentID
	next.RegistrationID = current.RegistrationID
	next.GatewayReference = current.GatewayReference
	next.CreatedAt = current.CreatedAt
	next.Status = models.NormalizePaymentStatus(next.Status)
	next.Currency = models.NormalizeCurrency(next.Currency)
	next.Amount = models.NormalizeAmount(next.Amount)
	return next
}

// pickLatest returns the payment with the newest CreatedAt. payments must be
// in insertion order; on equal timestamps the later insertion wins.
func pickLatest(payments []models.PaymentTransaction) *models.PaymentTransaction {
	var latest *models.PaymentTransaction
	for i := range payments {
		p := &payments[i]
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil
	}
	return latest.Clone()
}
