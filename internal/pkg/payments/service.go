// Package payments drives the registration payment lifecycle: initiating a
// gateway round-trip, applying (possibly redelivered) gateway confirmations
// and lazily reverting stalled pending registrations.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ConfDesk/app/models"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/audit"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/ledger"
)

// Auditor receives lifecycle events. *audit.Trail implements it.
type Auditor interface {
	Record(ctx context.Context, eventType audit.EventType, registrationID, paymentID string, fields map[string]interface{})
}

// ErrorLogger receives store failures the service converts into
// ErrServiceUnavailable. *audit.ErrorLogger implements it.
type ErrorLogger interface {
	LogError(ctx context.Context, op string, err error, fields map[string]interface{})
}

// Service is the payment orchestrator. All mutable state lives in the store.
type Service struct {
	store          ledger.Store
	auditor        Auditor
	errLog         ErrorLogger
	clock          Clock
	newReference   func() string
	pendingTimeout time.Duration
	currency       string
	locks          *keyedLocker
}

// Option configures a Service.
type Option func(*Service)

func WithAuditor(a Auditor) Option { return func(s *Service) { s.auditor = a } }

func WithErrorLogger(l ErrorLogger) Option { return func(s *Service) { s.errLog = l } }

func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithReferenceGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newReference = gen
		}
	}
}

func WithPendingTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pendingTimeout = d
		}
	}
}

func WithCurrency(currency string) Option {
	return func(s *Service) { s.currency = models.NormalizeCurrency(currency) }
}

// NewService creates an orchestrator over store.
func NewService(store ledger.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		clock:          time.Now,
		newReference:   NewGatewayReference,
		pendingTimeout: DefaultPendingTimeout,
		currency:       models.DefaultCurrency,
		locks:          newKeyedLocker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConfirmRequest is a gateway callback. Status may be empty.
type ConfirmRequest struct {
	RegistrationID   string
	GatewayReference string
	Status           string
	ActorID          string
}

// Initiate starts a payment attempt for an unpaid registration. Paid and
// pending registrations are returned as-is with their latest payment.
func (s *Service) Initiate(ctx context.Context, registrationID, actorID string) (*Result, error) {
	id := strings.TrimSpace(registrationID)
	unlock := s.locks.Lock(registrationLockKey(id))
	defer unlock()

	reg, err := s.loadRegistration(ctx, "initiate", id)
	if err != nil {
		return nil, err
	}

	switch reg.Status {
	case models.RegistrationStatusPaidConfirmed:
		return &Result{Outcome: OutcomeAlreadyPaid, Registration: reg, Payment: s.latestPayment(ctx, id)}, nil
	case models.RegistrationStatusPendingConfirmation:
		return &Result{Outcome: OutcomePending, Registration: reg, Payment: s.latestPayment(ctx, id)}, nil
	}

	now := s.clock()
	ref := s.newReference()
	payment, updated, err := s.store.SavePaymentAndRegistration(ctx, id, ledger.PaymentInput{
		RegistrationID:   id,
		Amount:           reg.FeeAmount,
		Currency:         s.currency,
		Status:           models.PaymentStatusPendingConfirmation,
		CreatedAt:        now,
		GatewayReference: ref,
	}, models.RegistrationStatusPendingConfirmation, "", now)
	if err != nil {
		s.logError(ctx, "initiate", err, map[string]interface{}{
			"registration_id":           id,
			audit.FieldGatewayReference: ref,
			audit.FieldActorID:          actorID,
		})
		return nil, fmt.Errorf("%w: initiate payment", ErrServiceUnavailable)
	}
	if updated == nil {
		updated = reg
	}

	s.record(ctx, audit.EventInitiated, id, payment.PaymentID, map[string]interface{}{
		audit.FieldGatewayReference: payment.GatewayReference,
		audit.FieldActorID:          actorID,
		audit.FieldStatus:           payment.Status,
	})
	return &Result{Outcome: OutcomeInitiated, Registration: updated, Payment: payment}, nil
}

// Confirm applies a gateway callback. It is idempotent per gateway
// reference: once the transaction is settled, further calls return
// OutcomeDuplicate without touching the store.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*Result, error) {
	req.RegistrationID = strings.TrimSpace(req.RegistrationID)
	req.GatewayReference = strings.TrimSpace(req.GatewayReference)
	if req.GatewayReference == "" || req.RegistrationID == "" {
		return nil, fmt.Errorf("%w: registration_id and gateway_reference are required", ErrValidation)
	}

	unlock := s.locks.Lock(referenceLockKey(req.GatewayReference))
	defer unlock()

	existing, err := s.store.FindPaymentByGatewayReference(ctx, req.GatewayReference)
	switch {
	case err == nil:
		return s.confirmExisting(ctx, existing, req)
	case errors.Is(err, ledger.ErrPaymentNotFound):
		return s.confirmFirstSighting(ctx, req)
	default:
		s.logError(ctx, "confirm", err, map[string]interface{}{
			"registration_id":           req.RegistrationID,
			audit.FieldGatewayReference: req.GatewayReference,
		})
		return nil, fmt.Errorf("%w: look up gateway reference", ErrServiceUnavailable)
	}
}

func (s *Service) confirmExisting(ctx context.Context, existing *models.PaymentTransaction, req ConfirmRequest) (*Result, error) {
	unlock := s.locks.Lock(registrationLockKey(existing.RegistrationID))
	defer unlock()

	reg, err := s.loadRegistration(ctx, "confirm", existing.RegistrationID)
	if err != nil {
		return nil, err
	}

	incoming := normalizeIncomingStatus(req.Status)
	if incoming == "" {
		incoming = existing.Status
	}
	if incoming == "" {
		incoming = models.PaymentStatusSucceeded
	}

	if existing.IsSettled() {
		s.record(ctx, audit.EventDuplicateConfirmation, reg.RegistrationID, existing.PaymentID, map[string]interface{}{
			audit.FieldGatewayReference: existing.GatewayReference,
			audit.FieldActorID:          req.ActorID,
			audit.FieldStatus:           incoming,
		})
		return &Result{Outcome: OutcomeDuplicate, Registration: reg, Payment: existing}, nil
	}

	now := s.clock()
	payment, err := s.store.UpdatePaymentRecord(ctx, existing.PaymentID, func(p *models.PaymentTransaction) {
		p.Status = incoming
		if isTerminal(incoming) {
			p.ConfirmedAt = &now
		}
	})
	if err != nil {
		s.logError(ctx, "confirm", err, map[string]interface{}{
			"registration_id":           reg.RegistrationID,
			"payment_id":                existing.PaymentID,
			audit.FieldGatewayReference: existing.GatewayReference,
		})
		return nil, fmt.Errorf("%w: update payment", ErrServiceUnavailable)
	}

	status, reason := registrationStatusFor(payment.Status)
	reg = s.projectRegistration(ctx, reg, status, reason, now)

	s.record(ctx, eventFor(payment.Status), reg.RegistrationID, payment.PaymentID, confirmFields(payment, req.ActorID, reason))
	return &Result{Outcome: OutcomeProcessed, Registration: reg, Payment: payment}, nil
}

func (s *Service) confirmFirstSighting(ctx context.Context, req ConfirmRequest) (*Result, error) {
	unlock := s.locks.Lock(registrationLockKey(req.RegistrationID))
	defer unlock()

	reg, err := s.loadRegistration(ctx, "confirm", req.RegistrationID)
	if err != nil {
		return nil, err
	}

	incoming := normalizeIncomingStatus(req.Status)
	if incoming == "" {
		incoming = models.PaymentStatusSucceeded
	}
	status, reason := registrationStatusFor(incoming)

	now := s.clock()
	in := ledger.PaymentInput{
		RegistrationID:   reg.RegistrationID,
		Amount:           reg.FeeAmount,
		Currency:         s.currency,
		Status:           incoming,
		CreatedAt:        now,
		ConfirmedAt:      &now,
		GatewayReference: req.GatewayReference,
	}

	payment, updated, err := s.store.SavePaymentAndRegistration(ctx, reg.RegistrationID, in, status, reason, now)
	if err != nil {
		s.logError(ctx, "confirm", err, map[string]interface{}{
			"registration_id":           reg.RegistrationID,
			audit.FieldGatewayReference: req.GatewayReference,
			audit.FieldActorID:          req.ActorID,
		})
		return nil, fmt.Errorf("%w: record confirmation", ErrServiceUnavailable)
	}
	if updated == nil {
		updated = reg
	}

	s.record(ctx, eventFor(payment.Status), updated.RegistrationID, payment.PaymentID, confirmFields(payment, req.ActorID, reason))
	return &Result{Outcome: OutcomeProcessed, Registration: updated, Payment: payment}, nil
}

// Status returns the timeout-evaluated registration and its latest payment.
func (s *Service) Status(ctx context.Context, registrationID string) (*Result, error) {
	id := strings.TrimSpace(registrationID)
	unlock := s.locks.Lock(registrationLockKey(id))
	defer unlock()

	reg, err := s.loadRegistration(ctx, "status", id)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeOK, Registration: reg, Payment: s.latestPayment(ctx, id)}, nil
}

// Records returns the registration with every payment attempt in insertion order.
func (s *Service) Records(ctx context.Context, registrationID string) (*Result, error) {
	id := strings.TrimSpace(registrationID)
	unlock := s.locks.Lock(registrationLockKey(id))
	defer unlock()

	reg, err := s.loadRegistration(ctx, "records", id)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPaymentsByRegistration(ctx, id)
	if err != nil {
		s.logError(ctx, "records", err, map[string]interface{}{"registration_id": id})
		return nil, fmt.Errorf("%w: list payments", ErrServiceUnavailable)
	}
	return &Result{
		Outcome:      OutcomeOK,
		Registration: reg,
		Payment:      latestOf(payments),
		Payments:     payments,
	}, nil
}

// Summary is a flat display view of a registration's payment state.
type Summary struct {
	RegistrationID      string     `json:"registration_id"`
	Status              string     `json:"status"`
	StatusReason        string     `json:"status_reason"`
	StatusUpdatedAt     *time.Time `json:"status_updated_at,omitempty"`
	FeeAmount           string     `json:"fee_amount,omitempty"`
	AttemptCount        int        `json:"attempt_count"`
	LatestPaymentID     string     `json:"latest_payment_id,omitempty"`
	LatestPaymentStatus string     `json:"latest_payment_status,omitempty"`
	GatewayReference    string     `json:"gateway_reference,omitempty"`
	Currency            string     `json:"currency,omitempty"`
}

// Summary returns the display view, timeout-evaluated like every read.
func (s *Service) Summary(ctx context.Context, registrationID string) (*Summary, error) {
	res, err := s.Records(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	reg := res.Registration
	sum := &Summary{
		RegistrationID:  reg.RegistrationID,
		Status:          reg.Status,
		StatusReason:    reg.StatusReason,
		StatusUpdatedAt: reg.StatusUpdatedAt,
		AttemptCount:    len(res.Payments),
	}
	if reg.FeeAmount != nil {
		sum.FeeAmount = reg.FeeAmount.StringFixed(2)
	}
	if p := res.Payment; p != nil {
		sum.LatestPaymentID = p.PaymentID
		sum.LatestPaymentStatus = p.Status
		sum.GatewayReference = p.GatewayReference
		sum.Currency = p.Currency
	}
	return sum, nil
}

// loadRegistration reads a registration and applies the pending timeout.
// Every read path goes through here.
func (s *Service) loadRegistration(ctx context.Context, op, registrationID string) (*models.Registration, error) {
	if registrationID == "" {
		return nil, fmt.Errorf("%w: empty registration id", ErrNotFound)
	}
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, ledger.ErrRegistrationNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, registrationID)
		}
		s.logError(ctx, op, err, map[string]interface{}{"registration_id": registrationID})
		return nil, fmt.Errorf("%w: load registration", ErrServiceUnavailable)
	}
	return s.evaluatePendingTimeout(ctx, reg), nil
}

// evaluatePendingTimeout reverts a registration that has been pending for
// longer than the timeout. A missing timestamp or failed write leaves it as is.
func (s *Service) evaluatePendingTimeout(ctx context.Context, reg *models.Registration) *models.Registration {
	if reg.Status != models.RegistrationStatusPendingConfirmation {
		return reg
	}
	if reg.StatusUpdatedAt == nil || reg.StatusUpdatedAt.IsZero() {
		return reg
	}
	now := s.clock()
	if now.Sub(*reg.StatusUpdatedAt) <= s.pendingTimeout {
		return reg
	}

	updated, err := s.store.UpdateRegistrationStatus(ctx, reg.RegistrationID, models.RegistrationStatusUnpaid, models.ReasonPendingTimeout, now)
	if err != nil {
		s.logError(ctx, "pending_timeout", err, map[string]interface{}{"registration_id": reg.RegistrationID})
		return reg
	}

	paymentID := ""
	if latest := s.latestPayment(ctx, reg.RegistrationID); latest != nil {
		paymentID = latest.PaymentID
	}
	s.record(ctx, audit.EventPendingTimeout, reg.RegistrationID, paymentID, map[string]interface{}{
		audit.FieldReasonCode: models.ReasonPendingTimeout,
	})
	return updated
}

// projectRegistration writes the registration status derived from a
// confirmed payment. A failed write is logged while the payment update stands.
func (s *Service) projectRegistration(ctx context.Context, reg *models.Registration, status, reason string, now time.Time) *models.Registration {
	updated, err := s.store.UpdateRegistrationStatus(ctx, reg.RegistrationID, status, reason, now)
	if err != nil {
		log.Warnf("[Payments] registration %s status update to %s failed: %v", reg.RegistrationID, status, err)
		return reg
	}
	return updated
}

func (s *Service) latestPayment(ctx context.Context, registrationID string) *models.PaymentTransaction {
	p, err := s.store.LatestPayment(ctx, registrationID)
	if err != nil {
		if !errors.Is(err, ledger.ErrPaymentNotFound) {
			log.Warnf("[Payments] latest payment lookup for %s failed: %v", registrationID, err)
		}
		return nil
	}
	return p
}

func latestOf(payments []models.PaymentTransaction) *models.PaymentTransaction {
	var latest *models.PaymentTransaction
	for i := range payments {
		if latest == nil || !payments[i].CreatedAt.Before(latest.CreatedAt) {
			latest = &payments[i]
		}
	}
	return latest
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, registrationID, paymentID string, fields map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, eventType, registrationID, paymentID, fields)
}

func (s *Service) logError(ctx context.Context, op string, err error, fields map[string]interface{}) {
	if s.errLog == nil {
		return
	}
	s.errLog.LogError(ctx, op, err, fields)
}

func confirmFields(p *models.PaymentTransaction, actorID, reason string) map[string]interface{} {
	fields := map[string]interface{}{
		audit.FieldGatewayReference: p.GatewayReference,
		audit.FieldActorID:          actorID,
		audit.FieldStatus:           p.Status,
	}
	if reason != "" {
		fields[audit.FieldReasonCode] = reason
	}
	return fields
}

func registrationLockKey(id string) string { return "registration:" + id }

func referenceLockKey(ref string) string { return "reference:" + ref }
