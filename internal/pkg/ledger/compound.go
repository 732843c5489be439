package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

// recordWriter is the subset of Store the ordered compound write needs.
type recordWriter interface {
	CreatePaymentRecord(ctx context.Context, in PaymentInput) (*models.PaymentTransaction, error)
	UpdateRegistrationStatus(ctx context.Context, registrationID, status, reasonCode string, updatedAt time.Time) (*models.Registration, error)
}

// SavePaymentThenRegistration is the ordered, payment-first write used by
// every backend:
//
//  1. create the payment record; any error (including
//     ErrDuplicateGatewayReference) is returned unchanged.
//  2. update the registration status. A failure or panic here is logged as a
//     warning and the payment is kept; the returned registration is nil.
//
// The payment ledger is the source of truth and the registration status is a
// projection of it, so step 1 is never rolled back.
func SavePaymentThenRegistration(
	ctx context.Context,
	w recordWriter,
	registrationID string,
	in PaymentInput,
	status,
	reasonCode string,
	updatedAt time.Time,
) (*models.PaymentTransaction, *models.Registration, error) {
	if in.RegistrationID == "" {
		in.RegistrationID = registrationID
	}
	payment, err := w.CreatePaymentRecord(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	registration, err := updateRegistrationSafely(ctx, w, registrationID, status, reasonCode, updatedAt)
	if err != nil {
		log.Warnf("[Ledger] payment %s stored but registration %s status update failed: %v", payment.PaymentID, registrationID, err)
		return payment, nil, nil
	}
	return payment, registration, nil
}

func updateRegistrationSafely(
	ctx context.Context,
	w recordWriter,
	registrationID,
	status,
	reasonCode string,
	updatedAt time.Time,
) (registration *models.Registration, err error) {
	defer func() {
		if r := recover(); r != nil {
			registration = nil
			err = fmt.Errorf("registration update panicked: %v", r)
		}
	}()
	return w.UpdateRegistrationStatus(ctx, registrationID, status, reasonCode, updatedAt)
}
