package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func seedRegistration(t *testing.T, s Store, id string) {
	t.Helper()
	require.NoError(t, s.SaveRegistration(context.Background(), &models.Registration{
		RegistrationID: id,
		AttendeeID:     "A-" + id,
		Category:       "academic",
		FeeAmount:      amount(200),
		Status:         models.RegistrationStatusUnpaid,
	}))
}

// runStoreContract exercises behaviour every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("registration round trip", func(t *testing.T) {
		s := newStore(t)
		seedRegistration(t, s, "R1")

		r, err := s.GetRegistration(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "A-R1", r.AttendeeID)
		assert.Equal(t, models.RegistrationStatusUnpaid, r.Status)
		require.NotNil(t, r.FeeAmount)
		assert.True(t, r.FeeAmount.Equal(decimal.NewFromInt(200)))

		_, err = s.GetRegistration(ctx, "missing")
		assert.ErrorIs(t, err, ErrRegistrationNotFound)
	})

	t.Run("save normalizes status and negative fee", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveRegistration(ctx, &models.Registration{
			RegistrationID: "R2",
			Status:         "weird",
			FeeAmount:      amount(-20),
		}))
		r, err := s.GetRegistration(ctx, "R2")
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationStatusUnpaid, r.Status)
		assert.Nil(t, r.FeeAmount)
	})

	t.Run("update registration status", func(t *testing.T) {
		s := newStore(t)
		seedRegistration(t, s, "R1")

		r, err := s.UpdateRegistrationStatus(ctx, "R1", models.RegistrationStatusPendingConfirmation, "", baseTime)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationStatusPendingConfirmation, r.Status)
		require.NotNil(t, r.StatusUpdatedAt)
		assert.True(t, r.StatusUpdatedAt.Equal(baseTime))

		stored, err := s.GetRegistration(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationStatusPendingConfirmation, stored.Status)

		_, err = s.UpdateRegistrationStatus(ctx, "nope", models.RegistrationStatusUnpaid, "", baseTime)
		assert.ErrorIs(t, err, ErrRegistrationNotFound)
	})

	t.Run("create payment normalizes input", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreatePaymentRecord(ctx, PaymentInput{
			RegistrationID:   "R1",
			Amount:           amount(-3),
			Currency:         "",
			Status:           models.PaymentStatusPendingConfirmation,
			CreatedAt:        baseTime,
			GatewayReference: "gw-1",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, p.PaymentID)
		assert.Nil(t, p.Amount)
		assert.Equal(t, "USD", p.Currency)
		assert.Nil(t, p.ConfirmedAt)

		found, err := s.FindPaymentByGatewayReference(ctx, "gw-1")
		require.NoError(t, err)
		assert.Equal(t, p.PaymentID, found.PaymentID)

		_, err = s.FindPaymentByGatewayReference(ctx, "gw-unknown")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
		_, err = s.FindPaymentByGatewayReference(ctx, "")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("duplicate gateway reference rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreatePaymentRecord(ctx, PaymentInput{RegistrationID: "R1", GatewayReference: "gw-dup", CreatedAt: baseTime})
		require.NoError(t, err)

		_, err = s.CreatePaymentRecord(ctx, PaymentInput{RegistrationID: "R9", GatewayReference: "gw-dup", CreatedAt: baseTime})
		assert.ErrorIs(t, err, ErrDuplicateGatewayReference)

		payments, err := s.ListPaymentsByRegistration(ctx, "R9")
		require.NoError(t, err)
		assert.Empty(t, payments)
	})

	t.Run("empty gateway references are not indexed", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 2; i++ {
			_, err := s.CreatePaymentRecord(ctx, PaymentInput{RegistrationID: "R1", CreatedAt: baseTime})
			require.NoError(t, err)
		}
		payments, err := s.ListPaymentsByRegistration(ctx, "R1")
		require.NoError(t, err)
		assert.Len(t, payments, 2)
	})

	t.Run("concurrent creates with one reference yield one record", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		var mu sync.Mutex
		created, duplicates := 0, 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreatePaymentRecord(ctx, PaymentInput{RegistrationID: "R1", GatewayReference: "gw-race", CreatedAt: baseTime})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					created++
				} else if assert.ErrorIs(t, err, ErrDuplicateGatewayReference) {
					duplicates++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Equal(t, 9, duplicates)
		payments, err := s.ListPaymentsByRegistration(ctx, "R1")
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("update payment preserves identity fields", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreatePaymentRecord(ctx, PaymentInput{
			RegistrationID:   "R1",
			Amount:           amount(200),
			Status:           models.PaymentStatusPendingConfirmation,
			CreatedAt:        baseTime,
			GatewayReference: "gw-keep",
		})
		require.NoError(t, err)

		confirmedAt := baseTime.Add(time.Minute)
		updated, err := s.UpdatePaymentRecord(ctx, p.PaymentID, func(tx *models.PaymentTransaction) {
			tx.PaymentID = "hijacked"
			tx.RegistrationID = "R-other"
			tx.GatewayReference = "gw-other"
			tx.CreatedAt = baseTime.Add(48 * time.Hour)
			tx.Status = models.PaymentStatusSucceeded
			tx.ConfirmedAt = &confirmedAt
		})
		require.NoError(t, err)
		assert.Equal(t, p.PaymentID, updated.PaymentID)
		assert.Equal(t, "R1", updated.RegistrationID)
		assert.Equal(t, "gw-keep", updated.GatewayReference)
		assert.True(t, updated.CreatedAt.Equal(baseTime))
		assert.Equal(t, models.PaymentStatusSucceeded, updated.Status)
		require.NotNil(t, updated.ConfirmedAt)
		assert.True(t, updated.ConfirmedAt.Equal(confirmedAt))

		found, err := s.FindPaymentByGatewayReference(ctx, "gw-keep")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusSucceeded, found.Status)

		_, err = s.UpdatePaymentRecord(ctx, "missing", nil)
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("list keeps insertion order and latest picks newest", func(t *testing.T) {
		s := newStore(t)
		for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
			_, err := s.CreatePaymentRecord(ctx, PaymentInput{
				PaymentID:        fmt.Sprintf("P%d", i),
				RegistrationID:   "R1",
				CreatedAt:        baseTime.Add(offset),
				GatewayReference: fmt.Sprintf("gw-order-%d", i),
			})
			require.NoError(t, err)
		}

		payments, err := s.ListPaymentsByRegistration(ctx, "R1")
		require.NoError(t, err)
		require.Len(t, payments, 3)
		assert.Equal(t, []string{"P0", "P1", "P2"}, []string{payments[0].PaymentID, payments[1].PaymentID, payments[2].PaymentID})

		latest, err := s.LatestPayment(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "P0", latest.PaymentID)

		_, err = s.LatestPayment(ctx, "R-none")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("latest breaks timestamp ties by insertion order", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"PA", "PB"} {
			_, err := s.CreatePaymentRecord(ctx, PaymentInput{PaymentID: id, RegistrationID: "R1", CreatedAt: baseTime})
			require.NoError(t, err)
		}
		latest, err := s.LatestPayment(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "PB", latest.PaymentID)
	})

	t.Run("compound save writes payment then registration", func(t *testing.T) {
		s := newStore(t)
		seedRegistration(t, s, "R1")

		p, r, err := s.SavePaymentAndRegistration(ctx, "R1", PaymentInput{
			Amount:           amount(200),
			Status:           models.PaymentStatusPendingConfirmation,
			CreatedAt:        baseTime,
			GatewayReference: "gw-compound",
		}, models.RegistrationStatusPendingConfirmation, "", baseTime)
		require.NoError(t, err)
		require.NotNil(t, p)
		require.NotNil(t, r)
		assert.Equal(t, "R1", p.RegistrationID)
		assert.Equal(t, models.RegistrationStatusPendingConfirmation, r.Status)
	})

	t.Run("compound save propagates duplicate reference", func(t *testing.T) {
		s := newStore(t)
		seedRegistration(t, s, "R1")
		_, err := s.CreatePaymentRecord(ctx, PaymentInput{RegistrationID: "R1", GatewayReference: "gw-taken", CreatedAt: baseTime})
		require.NoError(t, err)

		_, _, err = s.SavePaymentAndRegistration(ctx, "R1", PaymentInput{GatewayReference: "gw-taken"}, models.RegistrationStatusPendingConfirmation, "", baseTime)
		assert.ErrorIs(t, err, ErrDuplicateGatewayReference)

		r, err := s.GetRegistration(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationStatusUnpaid, r.Status)
	})

	t.Run("compound save keeps payment when registration is missing", func(t *testing.T) {
		s := newStore(t)
		p, r, err := s.SavePaymentAndRegistration(ctx, "R-ghost", PaymentInput{GatewayReference: "gw-ghost", CreatedAt: baseTime}, models.RegistrationStatusPaidConfirmed, "", baseTime)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Nil(t, r)

		found, err := s.FindPaymentByGatewayReference(ctx, "gw-ghost")
		require.NoError(t, err)
		assert.Equal(t, p.PaymentID, found.PaymentID)
	})
}
