package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ConfDesk/internal/pkg/cache"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/ledger"
)

func TestNewLedgerStoreBackends(t *testing.T) {
	assert.IsType(t, &ledger.MemoryStore{}, newLedgerStore(BackendMemory))
	assert.Panics(t, func() { newLedgerStore("etcd") })
}

func TestNewApplicationServesAPI(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", BackendMemory)
	t.Setenv("AUDIT_DB_ENABLED", "false")
	t.Setenv("AUDIT_S3_ENABLED", "false")

	app, shutdown := NewApplication()
	defer shutdown()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/registrations/unknown/payment-status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRedisBackendUsesSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("CACHE_HOST", mr.Host())
	t.Setenv("CACHE_PORT", mr.Port())
	t.Cleanup(func() { cache.SetClient(nil) })

	store := newLedgerStore(BackendRedis)
	require.IsType(t, &ledger.RedisStore{}, store)

	client := cache.GetClient()
	require.NotNil(t, client)
	assert.Equal(t, mr.Addr(), client.Options().Addr)
}

func TestPaymentCountersEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(nil)
	t.Cleanup(func() { cache.SetClient(nil) })
	t.Setenv("CACHE_HOST", mr.Host())
	t.Setenv("CACHE_PORT", mr.Port())
	t.Setenv("LEDGER_BACKEND", BackendMemory)
	t.Setenv("METRICS_COUNTERS_ENABLED", "true")
	t.Setenv("METRICS_USER", "ops")
	t.Setenv("METRICS_PASSWORD", "pw")

	app, shutdown := NewApplication()
	defer shutdown()

	_, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/v1/registrations/nope/payments", nil))
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics/payments", nil)
	req.SetBasicAuth("ops", "pw")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var snap map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, int64(1), snap["initiate:not_found"])
}
