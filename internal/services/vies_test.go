package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexconsult/vies-api/internal/config"
	"github.com/nexconsult/vies-api/internal/logstream"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testViesConfig(baseURL string) config.VIESConfig {
	return config.VIESConfig{
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		MaxRetries:        1,
		RetryDelay:        10 * time.Millisecond,
		CacheTTL:          time.Minute,
		RequestsPerSecond: 1000,
		BurstSize:         1000,
	}
}

func newTestClient(baseURL string, cache CacheInterface) ValidatorInterface {
	return NewViesClient(testViesConfig(baseURL), cache, logstream.New(100), testLogger())
}

func TestValidateValidNumber(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isValid":true,"name":"ACME SRL","address":"VIA ROMA 1","requestDate":"2026-08-31T10:00:00.000Z"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "IT", "05159640266")

	assert.Equal(t, "/ms/IT/vat/05159640266", gotPath)
	require.NotNil(t, result.Valid)
	assert.True(t, *result.Valid)
	assert.Equal(t, models.CodeValid, result.ErrorCode)
	assert.Equal(t, "ACME SRL", result.CompanyName)
	assert.Equal(t, "VIA ROMA 1", result.CompanyAddress)
	assert.Equal(t, "2026-08-31T10:00:00.000Z", result.RequestDate)
	assert.True(t, result.IsValid())
	assert.False(t, result.Cache)
}

func TestValidateInvalidNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isValid":false,"name":"---","address":"---"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "DE", "129273398")

	require.NotNil(t, result.Valid)
	assert.False(t, *result.Valid)
	assert.Equal(t, models.CodeInvalid, result.ErrorCode)
	assert.Empty(t, result.CompanyName, `"---" means not disclosed`)
	assert.Empty(t, result.CompanyAddress)
	assert.False(t, result.IsValid())
}

func TestValidateFieldAliases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":true,"traderName":"ACME GMBH","traderAddress":"HAUPTSTR 5"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "DE", "129273398")

	require.NotNil(t, result.Valid)
	assert.True(t, *result.Valid)
	assert.Equal(t, "ACME GMBH", result.CompanyName)
	assert.Equal(t, "HAUPTSTR 5", result.CompanyAddress)
}

func TestValidateUserError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isValid":false,"userError":"MS_MAX_CONCURRENT_REQ"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "ES", "B12345678")

	assert.Equal(t, models.CodeMSMaxConcurrent, result.ErrorCode)
	assert.Equal(t, "MS_MAX_CONCURRENT_REQ", result.ErrorMessage)
	assert.False(t, result.ErrorCode.IsDefinitive())
}

func TestValidateUnknownUserError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"userError":"SOMETHING_NEW"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "FR", "12345678901")

	assert.Equal(t, models.CodeUnknown, result.ErrorCode)
}

func TestValidateHTTPErrorIsFinal(t *testing.T) {
	var attempts int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "IT", "05159640266")

	assert.Equal(t, models.CodeServiceUnavailable, result.ErrorCode)
	assert.Nil(t, result.Valid)
	assert.EqualValues(t, 1, atomic.LoadInt64(&attempts), "an HTTP response is final, not retried")
}

func TestValidateMalformedBodyIsFinal(t *testing.T) {
	var attempts int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.Write([]byte(`{"isValid": tru`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "IT", "05159640266")

	assert.Equal(t, models.CodeServiceUnavailable, result.ErrorCode)
	assert.EqualValues(t, 1, atomic.LoadInt64(&attempts))
}

func TestValidateRetriesOnceOnTimeout(t *testing.T) {
	var attempts int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testViesConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewViesClient(cfg, nil, logstream.New(100), testLogger())

	result := client.Validate(context.Background(), "IT", "05159640266")

	assert.Equal(t, models.CodeTimeout, result.ErrorCode)
	assert.Nil(t, result.Valid)
	assert.EqualValues(t, 2, atomic.LoadInt64(&attempts), "exactly one retry")
}

func TestValidateDeadlineDuringBackoffReportsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	cfg := testViesConfig(server.URL)
	cfg.RetryDelay = 500 * time.Millisecond
	client := NewViesClient(cfg, nil, logstream.New(100), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := client.Validate(ctx, "IT", "05159640266")

	assert.Equal(t, models.CodeTimeout, result.ErrorCode, "an expired deadline is a timeout, not an upstream outage")
	assert.Less(t, time.Since(start), cfg.RetryDelay, "the backoff sleep is cut short by the deadline")
}

func TestValidateConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL, nil)
	result := client.Validate(context.Background(), "IT", "05159640266")

	assert.Equal(t, models.CodeServiceUnavailable, result.ErrorCode)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestValidateServesFromCache(t *testing.T) {
	var attempts int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.Write([]byte(`{"isValid":true,"name":"ACME SRL"}`))
	}))
	defer server.Close()

	cache := NewResultCache(nil, time.Minute, testLogger())
	client := newTestClient(server.URL, cache)

	first := client.Validate(context.Background(), "IT", "05159640266")
	second := client.Validate(context.Background(), "IT", "05159640266")

	assert.False(t, first.Cache)
	assert.True(t, second.Cache)
	assert.Equal(t, first.CompanyName, second.CompanyName)
	assert.EqualValues(t, 1, atomic.LoadInt64(&attempts), "second lookup never hits the wire")
}

func TestValidateLogsRequestAndResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isValid":true,"name":"ACME SRL"}`))
	}))
	defer server.Close()

	stream := logstream.New(100)
	client := NewViesClient(testViesConfig(server.URL), nil, stream, testLogger())
	client.Validate(context.Background(), "IT", "05159640266")

	lines := stream.Snapshot()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0].Text, "GET ")
	assert.Contains(t, lines[0].Text, "/ms/IT/vat/05159640266")
	assert.Contains(t, lines[1].Text, "200 ")
	assert.Contains(t, lines[1].Text, "valid=true")
}
