package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

// GormStore persists the ledger in SQL. Gateway reference uniqueness is
// enforced by the payment_gateway_references primary key, written in the same
// transaction as the payment row.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a ledger backed by GORM.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Registration{},
		&models.PaymentTransaction{},
		&models.PaymentGatewayReference{},
	)
}

func (s *GormStore) GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error) {
	var r models.Registration
	err := s.db.WithContext(ctx).Where("registration_id = ?", strings.TrimSpace(registrationID)).First(&r).Error
	if err != nil {
		return nil, translateNotFound(err, ErrRegistrationNotFound)
	}
	return &r, nil
}

func (s *GormStore) SaveRegistration(ctx context.Context, registration *models.Registration) error {
	r := registration.Clone()
	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}

	r.ID = 0
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "registration_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"attendee_id",
			"category",
			"fee_amount",
			"status",
			"status_reason",
			"status_updated_at",
		}),
	}).Create(r).Error; err != nil {
		return fmt.Errorf("save registration %s: %w", r.RegistrationID, err)
	}

	// Ensure ID is populated after upsert.
	if err := db.Where("registration_id = ?", r.RegistrationID).First(r).Error; err != nil {
		return fmt.Errorf("reload registration %s: %w", r.RegistrationID, err)
	}
	registration.ID = r.ID
	return nil
}

func (s *GormStore) UpdateRegistrationStatus(ctx context.Context, registrationID, status, reasonCode string, updatedAt time.Time) (*models.Registration, error) {
	var r models.Registration
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("registration_id = ?", strings.TrimSpace(registrationID)).First(&r).Error; err != nil {
			return translateNotFound(err, ErrRegistrationNotFound)
		}
		ts := updatedAt
		r.Status = models.NormalizeRegistrationStatus(status)
		r.StatusReason = reasonCode
		r.StatusUpdatedAt = &ts
		return tx.Model(&models.Registration{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"status":            r.Status,
			"status_reason":     r.StatusReason,
			"status_updated_at": r.StatusUpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) CreatePaymentRecord(ctx context.Context, in PaymentInput) (*models.PaymentTransaction, error) {
	p := newPaymentRecord(in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.GatewayReference != "" {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.PaymentGatewayReference{
				GatewayReference: p.GatewayReference,
				PaymentID:        p.PaymentID,
			})
			if res.Error != nil {
				return fmt.Errorf("index gateway reference: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrDuplicateGatewayReference
			}
		}

		var count int64
		if err := tx.Model(&models.PaymentTransaction{}).Where("payment_id = ?", p.PaymentID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicatePaymentID
		}
		return tx.Create(p).Error
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *GormStore) UpdatePaymentRecord(ctx context.Context, paymentID string, mutate PaymentMutation) (*models.PaymentTransaction, error) {
	var next *models.PaymentTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.PaymentTransaction
		if err := tx.Where("payment_id = ?", strings.TrimSpace(paymentID)).First(&current).Error; err != nil {
			return translateNotFound(err, ErrPaymentNotFound)
		}
		next = applyMutation(&current, mutate)
		return tx.Save(next).Error
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *GormStore) FindPaymentByGatewayReference(ctx context.Context, gatewayReference string) (*models.PaymentTransaction, error) {
	ref := strings.TrimSpace(gatewayReference)
	if ref == "" {
		return nil, ErrPaymentNotFound
	}
	var p models.PaymentTransaction
	if err := s.db.WithContext(ctx).Where("gateway_reference = ?", ref).First(&p).Error; err != nil {
		return nil, translateNotFound(err, ErrPaymentNotFound)
	}
	return &p, nil
}

func (s *GormStore) ListPaymentsByRegistration(ctx context.Context, registrationID string) ([]models.PaymentTransaction, error) {
	var payments []models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("registration_id = ?", strings.TrimSpace(registrationID)).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

func (s *GormStore) LatestPayment(ctx context.Context, registrationID string) (*models.PaymentTransaction, error) {
	var p models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("registration_id = ?", strings.TrimSpace(registrationID)).
		Order("created_at DESC").
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, translateNotFound(err, ErrPaymentNotFound)
	}
	return &p, nil
}

func (s *GormStore) SavePaymentAndRegistration(ctx context.Context, registrationID string, in PaymentInput, status, reasonCode string, updatedAt time.Time) (*models.PaymentTransaction, *models.Registration, error) {
	return SavePaymentThenRegistration(ctx, s, registrationID, in, status, reasonCode, updatedAt)
}

func translateNotFound(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
