package payments

import (
	"strings"

	"github.com/ManuelReschke/ConfDesk/app/models"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/audit"
)

// normalizeIncomingStatus maps a gateway status string onto the payment
// enumeration. Empty input stays empty so callers can apply fallbacks;
// anything unrecognised counts as failed.
func normalizeIncomingStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "":
		return ""
	case models.PaymentStatusSucceeded, "success", "successful", "paid", "completed", "confirmed":
		return models.PaymentStatusSucceeded
	case models.PaymentStatusPendingConfirmation, "pending":
		return models.PaymentStatusPendingConfirmation
	case models.PaymentStatusInitiated:
		return models.PaymentStatusInitiated
	case models.PaymentStatusDeclined:
		return models.PaymentStatusDeclined
	default:
		return models.PaymentStatusFailed
	}
}

// registrationStatusFor derives the registration projection of a payment status.
func registrationStatusFor(paymentStatus string) (status, reason string) {
	switch paymentStatus {
	case models.PaymentStatusSucceeded:
		return models.RegistrationStatusPaidConfirmed, ""
	case models.PaymentStatusPendingConfirmation, models.PaymentStatusInitiated:
		return models.RegistrationStatusPendingConfirmation, ""
	case models.PaymentStatusDeclined:
		return models.RegistrationStatusUnpaid, models.ReasonDeclined
	default:
		return models.RegistrationStatusUnpaid, models.ReasonInvalidDetails
	}
}

// eventFor picks the audit event of an applied confirmation: confirmed on
// success, failed for everything else (non-terminal statuses included).
func eventFor(paymentStatus string) audit.EventType {
	if paymentStatus == models.PaymentStatusSucceeded {
		return audit.EventConfirmed
	}
	return audit.EventFailed
}

func isTerminal(paymentStatus string) bool {
	switch paymentStatus {
	case models.PaymentStatusSucceeded, models.PaymentStatusFailed, models.PaymentStatusDeclined:
		return true
	default:
		return false
	}
}
