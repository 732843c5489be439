package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

const (
	// Redis key prefixes
	RegistrationKeyPrefix = "ledger:registration:"
	PaymentKeyPrefix      = "ledger:payment:"
	GatewayRefKeyPrefix   = "ledger:gateway_ref:"

	maxWatchRetries = 5
)

// RedisStore keeps the ledger in Redis as JSON documents plus one list per
// registration holding payment ids in insertion order. Gateway references are
// claimed with SETNX, which makes the duplicate check and the index insert
// one command.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a ledger on top of an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func registrationKey(id string) string { return RegistrationKeyPrefix + id }
func paymentKey(id string) string      { return PaymentKeyPrefix + id }
func gatewayRefKey(ref string) string  { return GatewayRefKeyPrefix + ref }
func registrationPaymentsKey(id string) string {
	return RegistrationKeyPrefix + id + ":payments"
}

func (s *RedisStore) GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error) {
	var r models.Registration
	if err := s.getJSON(ctx, s.client, registrationKey(strings.TrimSpace(registrationID)), &r, ErrRegistrationNotFound); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RedisStore) SaveRegistration(ctx context.Context, registration *models.Registration) error {
	r := registration.Clone()
	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, registrationKey(r.RegistrationID), data, 0).Err(); err != nil {
		return fmt.Errorf("save registration %s: %w", r.RegistrationID, err)
	}
	return nil
}

func (s *RedisStore) UpdateRegistrationStatus(ctx context.Context, registrationID, status, reasonCode string, updatedAt time.Time) (*models.Registration, error) {
	key := registrationKey(strings.TrimSpace(registrationID))
	var out *models.Registration
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		var r models.Registration
		if err := s.getJSON(ctx, tx, key, &r, ErrRegistrationNotFound); err != nil {
			return err
		}
		ts := updatedAt
		r.Status = models.NormalizeRegistrationStatus(status)
		r.StatusReason = reasonCode
		r.StatusUpdatedAt = &ts
		data, err := json.Marshal(&r)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		}); err != nil {
			return err
		}
		out = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) CreatePaymentRecord(ctx context.Context, in PaymentInput) (*models.PaymentTransaction, error) {
	p := newPaymentRecord(in)

	if p.GatewayReference != "" {
		claimed, err := s.client.SetNX(ctx, gatewayRefKey(p.GatewayReference), p.PaymentID, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("claim gateway reference: %w", err)
		}
		if !claimed {
			return nil, ErrDuplicateGatewayReference
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		s.releaseReference(ctx, p)
		return nil, err
	}
	stored, err := s.client.SetNX(ctx, paymentKey(p.PaymentID), data, 0).Result()
	if err != nil {
		s.releaseReference(ctx, p)
		return nil, fmt.Errorf("store payment: %w", err)
	}
	if !stored {
		s.releaseReference(ctx, p)
		return nil, ErrDuplicatePaymentID
	}
	if err := s.client.RPush(ctx, registrationPaymentsKey(p.RegistrationID), p.PaymentID).Err(); err != nil {
		_ = s.client.Del(ctx, paymentKey(p.PaymentID)).Err()
		s.releaseReference(ctx, p)
		return nil, fmt.Errorf("index payment by registration: %w", err)
	}
	return p, nil
}

// releaseReference gives a claimed reference back when the payment could not
// be written or indexed.
func (s *RedisStore) releaseReference(ctx context.Context, p *models.PaymentTransaction) {
	if p.GatewayReference == "" {
		return
	}
	_ = s.client.Del(ctx, gatewayRefKey(p.GatewayReference)).Err()
}

func (s *RedisStore) UpdatePaymentRecord(ctx context.Context, paymentID string, mutate PaymentMutation) (*models.PaymentTransaction, error) {
	key := paymentKey(strings.TrimSpace(paymentID))
	var out *models.PaymentTransaction
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		var current models.PaymentTransaction
		if err := s.getJSON(ctx, tx, key, &current, ErrPaymentNotFound); err != nil {
			return err
		}
		next := applyMutation(&current, mutate)
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		}); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) FindPaymentByGatewayReference(ctx context.Context, gatewayReference string) (*models.PaymentTransaction, error) {
	ref := strings.TrimSpace(gatewayReference)
	if ref == "" {
		return nil, ErrPaymentNotFound
	}
	id, err := s.client.Get(ctx, gatewayRefKey(ref)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	var p models.PaymentTransaction
	if err := s.getJSON(ctx, s.client, paymentKey(id), &p, ErrPaymentNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *RedisStore) ListPaymentsByRegistration(ctx context.Context, registrationID string) ([]models.PaymentTransaction, error) {
	ids, err := s.client.LRange(ctx, registrationPaymentsKey(strings.TrimSpace(registrationID)), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	payments := make([]models.PaymentTransaction, 0, len(ids))
	for _, id := range ids {
		var p models.PaymentTransaction
		if err := s.getJSON(ctx, s.client, paymentKey(id), &p, ErrPaymentNotFound); err != nil {
			if errors.Is(err, ErrPaymentNotFound) {
				continue
			}
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (s *RedisStore) LatestPayment(ctx context.Context, registrationID string) (*models.PaymentTransaction, error) {
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

func (s *RedisStore) SavePaymentAndRegistration(ctx context.Context, registrationID string, in PaymentInput, status, reasonCode string, updatedAt time.Time) (*models.PaymentTransaction, *models.Registration, error) {
	return SavePaymentThenRegistration(ctx, s, registrationID, in, status, reasonCode, updatedAt)
}

func (s *RedisStore) getJSON(ctx context.Context, c redis.Cmdable, key string, dst interface{}, notFound error) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

// watch runs fn under optimistic locking on key, retrying on conflicts.
func (s *RedisStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("watch %s: %w", key, err)
}
