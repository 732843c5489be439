package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCacheUsesEnvironment(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("CACHE_HOST", mr.Host())
	t.Setenv("CACHE_PORT", mr.Port())
	t.Setenv("CACHE_DB", "3")
	t.Cleanup(func() { SetClient(nil) })

	SetupCache()
	c := GetClient()
	require.NotNil(t, c)
	assert.Equal(t, mr.Addr(), c.Options().Addr)
	assert.Equal(t, 3, c.Options().DB)
	assert.NoError(t, c.Ping(context.Background()).Err())
}
