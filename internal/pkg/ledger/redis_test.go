package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ConfDesk/app/models"
)

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStore(client)
	})
}

func TestRedisStoreCreateCleansUpWhenIndexFails(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client)

	// A string where the payment list should be makes RPUSH fail with WRONGTYPE.
	require.NoError(t, mr.Set(registrationPaymentsKey("R1"), "broken"))

	_, err := store.CreatePaymentRecord(ctx, PaymentInput{
		PaymentID:        "P1",
		RegistrationID:   "R1",
		Status:           models.PaymentStatusSucceeded,
		GatewayReference: "gw_x",
	})
	require.Error(t, err)

	assert.False(t, mr.Exists(gatewayRefKey("gw_x")))
	assert.False(t, mr.Exists(paymentKey("P1")))
	_, err = store.FindPaymentByGatewayReference(ctx, "gw_x")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	// Once the list is usable again the same reference can be recorded.
	mr.Del(registrationPaymentsKey("R1"))
	p, err := store.CreatePaymentRecord(ctx, PaymentInput{
		RegistrationID:   "R1",
		Status:           models.PaymentStatusSucceeded,
		GatewayReference: "gw_x",
	})
	require.NoError(t, err)

	list, err := store.ListPaymentsByRegistration(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.PaymentID, list[0].PaymentID)
}
