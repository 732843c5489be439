package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

// MemoryStore is a concurrency-safe in-process Store. Each index is a plain
// map guarded by a single mutex, so the duplicate check and the insert in
// CreatePaymentRecord happen under one lock.
type MemoryStore struct {
	mu             sync.RWMutex
	seq            uint
	registrations  map[string]*models.Registration
	payments       map[string]*models.PaymentTransaction
	byReference    map[string]string
	byRegistration map[string][]string
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		registrations:  make(map[string]*models.Registration),
		payments:       make(map[string]*models.PaymentTransaction),
		byReference:    make(map[string]string),
		byRegistration: make(map[string][]string),
	}
}

func (s *MemoryStore) GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.registrations[strings.TrimSpace(registrationID)]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) SaveRegistration(ctx context.Context, registration *models.Registration) error {
	r := registration.Clone()
	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.registrations[r.RegistrationID]; ok {
		r.ID = existing.ID
	} else {
		s.seq++
		r.ID = s.seq
	}
	s.registrations[r.RegistrationID] = r
	registration.ID = r.ID
	return nil
}

func (s *MemoryStore) UpdateRegistrationStatus(ctx context.Context, registrationID, status, reasonCode string, updatedAt time.Time) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[strings.TrimSpace(registrationID)]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	ts := updatedAt
	r.Status = models.NormalizeRegistrationStatus(status)
	r.StatusReason = reasonCode
	r.StatusUpdatedAt = &ts
	return r.Clone(), nil
}

func (s *MemoryStore) CreatePaymentRecord(ctx context.Context, in PaymentInput) (*models.PaymentTransaction, error) {
	p := newPaymentRecord(in)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.GatewayReference != "" {
		if _, exists := s.byReference[p.GatewayReference]; exists {
			return nil, ErrDuplicateGatewayReference
		}
	}
	if _, exists := s.payments[p.PaymentID]; exists {
		return nil, ErrDuplicatePaymentID
	}

	s.seq++
	p.ID = s.seq
	s.payments[p.PaymentID] = p
	if p.GatewayReference != "" {
		s.byReference[p.GatewayReference] = p.PaymentID
	}
	s.byRegistration[p.RegistrationID] = append(s.byRegistration[p.RegistrationID], p.PaymentID)
	return p.Clone(), nil
}

func (s *MemoryStore) UpdatePaymentRecord(ctx context.Context, paymentID string, mutate PaymentMutation) (*models.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.payments[strings.TrimSpace(paymentID)]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	next := applyMutation(current, mutate)
	s.payments[next.PaymentID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) FindPaymentByGatewayReference(ctx context.Context, gatewayReference string) (*models.PaymentTransaction, error) {
	ref := strings.TrimSpace(gatewayReference)
	if ref == "" {
		return nil, ErrPaymentNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReference[ref]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return s.payments[id].Clone(), nil
}

func (s *MemoryStore) ListPaymentsByRegistration(ctx context.Context, registrationID string) ([]models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRegistration[strings.TrimSpace(registrationID)]
	out := make([]models.PaymentTransaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.payments[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) LatestPayment(ctx context.Context, registrationID string) (*models.PaymentTransaction, error) {
	payments, err := s.ListPaymentsByRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	latest := pickLatest(payments)
	if latest == nil {
		return nil, ErrPaymentNotFound
	}
	return latest, nil
}

func (s *MemoryStore) SavePaymentAndRegistration(ctx context.Context, registrationID string, in PaymentInput, status, reasonCode string, updatedAt time.Time) (*models.PaymentTransaction, *models.Registration, error) {
	return SavePaymentThenRegistration(ctx, s, registrationID, in, status, reasonCode, updatedAt)
}
