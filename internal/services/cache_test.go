package services

import (
	"context"
	"testing"
	"time"

	"github.com/nexconsult/vies-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResult() *models.VatResult {
	valid := true
	return &models.VatResult{
		Valid:            &valid,
		ErrorCode:        models.CodeValid,
		CompanyName:      "ACME SRL",
		RequestTimestamp: time.Now(),
	}
}

func TestCacheSetAndGet(t *testing.T) {
	cache := NewResultCache(nil, time.Minute, testLogger())
	ctx := context.Background()

	cache.Set(ctx, "IT05159640266", validResult())

	got, ok := cache.Get(ctx, "IT05159640266")
	require.True(t, ok)
	assert.Equal(t, "ACME SRL", got.CompanyName)
	assert.Equal(t, models.CodeValid, got.ErrorCode)

	_, ok = cache.Get(ctx, "DE129273398")
	assert.False(t, ok)
}

func TestCacheIgnoresNonDefinitiveResults(t *testing.T) {
	cache := NewResultCache(nil, time.Minute, testLogger())
	ctx := context.Background()

	for _, code := range []models.ErrorCode{
		models.CodeServiceUnavailable,
		models.CodeMSUnavailable,
		models.CodeTimeout,
		models.CodeGlobalMaxConcurrent,
		models.CodeMSMaxConcurrent,
		models.CodeInvalidInput,
		models.CodeUnknown,
	} {
		cache.Set(ctx, "IT05159640266", &models.VatResult{ErrorCode: code})
		_, ok := cache.Get(ctx, "IT05159640266")
		assert.False(t, ok, "code %s must not be cached", code)
	}
}

func TestCacheCachesInvalidAnswer(t *testing.T) {
	cache := NewResultCache(nil, time.Minute, testLogger())
	ctx := context.Background()

	invalid := false
	cache.Set(ctx, "IT05159640266", &models.VatResult{Valid: &invalid, ErrorCode: models.CodeInvalid})

	got, ok := cache.Get(ctx, "IT05159640266")
	require.True(t, ok)
	assert.Equal(t, models.CodeInvalid, got.ErrorCode)
}

func TestCacheEntryExpires(t *testing.T) {
	cache := NewResultCache(nil, 20*time.Millisecond, testLogger())
	ctx := context.Background()

	cache.Set(ctx, "IT05159640266", validResult())
	_, ok := cache.Get(ctx, "IT05159640266")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = cache.Get(ctx, "IT05159640266")
	assert.False(t, ok)
}

func TestCacheDeleteAndClear(t *testing.T) {
	cache := NewResultCache(nil, time.Minute, testLogger())
	ctx := context.Background()

	cache.Set(ctx, "IT05159640266", validResult())
	cache.Set(ctx, "DE129273398", validResult())

	require.NoError(t, cache.Delete(ctx, "IT05159640266"))
	_, ok := cache.Get(ctx, "IT05159640266")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "DE129273398")
	assert.True(t, ok)

	require.NoError(t, cache.Clear(ctx))
	_, ok = cache.Get(ctx, "DE129273398")
	assert.False(t, ok)
}

func TestCacheCleanupSweepsExpiredEntries(t *testing.T) {
	cache := NewResultCache(nil, 20*time.Millisecond, testLogger())
	ctx := context.Background()

	rc, ok := cache.(*ResultCache)
	require.True(t, ok)

	cache.Set(ctx, "IT05159640266", validResult())
	time.Sleep(30 * time.Millisecond)
	cache.Set(ctx, "DE129273398", validResult())

	rc.cleanupExpired()

	rc.memMutex.RLock()
	size := len(rc.memCache)
	rc.memMutex.RUnlock()
	assert.Equal(t, 1, size, "sweep drops only the expired entry")

	_, found := cache.Get(ctx, "DE129273398")
	assert.True(t, found)
}

func TestCacheStatsReportMemorySize(t *testing.T) {
	cache := NewResultCache(nil, time.Minute, testLogger())
	ctx := context.Background()

	cache.Set(ctx, "IT05159640266", validResult())

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)

	mem, ok := stats["memory"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1, mem["size"])
}
