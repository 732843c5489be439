package payments

import (
	"errors"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

// Outcome tags the result of a payment operation.
type Outcome string

const (
	OutcomeInitiated          Outcome = "initiated"
	OutcomeAlreadyPaid        Outcome = "already_paid"
	OutcomePending            Outcome = "pending"
	OutcomeProcessed          Outcome = "processed"
	OutcomeDuplicate          Outcome = "duplicate_ignored"
	OutcomeOK                 Outcome = "ok"
	OutcomeNotFound           Outcome = "not_found"
	OutcomeValidationError    Outcome = "validation_error"
	OutcomeServiceUnavailable Outcome = "service_unavailable"
)

var (
	ErrNotFound           = errors.New("registration not found")
	ErrValidation         = errors.New("validation error")
	ErrServiceUnavailable = errors.New("payment service unavailable")
)

// Result is returned by every successful service call. Payment is the
// transaction the outcome refers to (or the latest one for display) and
// Payments is only filled by Records.
type Result struct {
	Outcome      Outcome
	Registration *models.Registration
	Payment      *models.PaymentTransaction
	Payments     []models.PaymentTransaction
}

// OutcomeOf maps a service error to its outcome tag.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrValidation):
		return OutcomeValidationError
	default:
		return OutcomeServiceUnavailable
	}
}
