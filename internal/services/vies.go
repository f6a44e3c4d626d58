package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nexconsult/vies-api/internal/config"
	"github.com/nexconsult/vies-api/internal/logstream"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const userAgent = "vies-api/1.0"

// ViesClient validates VAT numbers against the VIES REST endpoint. One
// outbound GET per lookup, a single retry with fixed backoff on network
// failure, and a shared token bucket so batch workers cannot flood the
// service. Failures never escape as errors: callers always get a VatResult.
type ViesClient struct {
	config  config.VIESConfig
	client  *http.Client
	cache   CacheInterface
	limiter *rate.Limiter
	stream  *logstream.Stream
	logger  *logrus.Logger

	requestCounter int64
}

// viesResponse mirrors the upstream JSON body. VIES has shipped both field
// spellings over time, so both aliases are decoded and normalized below.
type viesResponse struct {
	IsValid       *bool  `json:"isValid"`
	Valid         *bool  `json:"valid"`
	Name          string `json:"name"`
	TraderName    string `json:"traderName"`
	Address       string `json:"address"`
	TraderAddress string `json:"traderAddress"`
	UserError     string `json:"userError"`
	RequestDate   string `json:"requestDate"`
}

// NewViesClient creates a new VIES client
func NewViesClient(cfg config.VIESConfig, cache CacheInterface, stream *logstream.Stream, logger *logrus.Logger) ValidatorInterface {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5.0
	}
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}

	return &ViesClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		stream:  stream,
		logger:  logger,
	}
}

// Validate looks up one VAT number. The returned result always carries an
// error code; transport failures surface as TIMEOUT or SERVICE_UNAVAILABLE
// after the retry budget is spent.
func (v *ViesClient) Validate(ctx context.Context, countryCode, number string) models.VatResult {
	start := time.Now()
	requestID := atomic.AddInt64(&v.requestCounter, 1)

	result := models.VatResult{
		Query: models.VatQuery{
			CountryCode: countryCode,
			Number:      number,
		},
		RequestTimestamp: start,
	}

	logger := v.logger.WithFields(logrus.Fields{
		"vat":        countryCode + number,
		"request_id": requestID,
	})

	if v.cache != nil {
		if cached, ok := v.cache.Get(ctx, countryCode+number); ok {
			result = *cached
			result.Query = models.VatQuery{CountryCode: countryCode, Number: number}
			result.Cache = true
			result.RequestTimestamp = start
			logger.WithField("duration", time.Since(start)).Debug("VAT result served from cache")
			return result
		}
	}

	url := fmt.Sprintf("%s/ms/%s/vat/%s", v.config.BaseURL, countryCode, number)
	v.stream.Appendf("GET %s", url)

	var lastErr error
	for attempt := 0; attempt <= v.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   v.config.RetryDelay,
			}).Warn("Retrying VIES request")

			select {
			case <-ctx.Done():
				code := models.CodeServiceUnavailable
				if isTimeout(ctx.Err()) {
					code = models.CodeTimeout
				}
				v.finishError(&result, code, ctx.Err(), url)
				return result
			case <-time.After(v.config.RetryDelay):
			}
		}

		outcome, final := v.doRequest(ctx, url)
		if final {
			v.finish(&result, outcome, countryCode+number, url, logger, start)
			return result
		}
		lastErr = outcome.err
	}

	// Retry budget exhausted on network failures.
	code := models.CodeServiceUnavailable
	if isTimeout(lastErr) {
		code = models.CodeTimeout
	}
	v.finishError(&result, code, lastErr, url)
	logger.WithFields(logrus.Fields{
		"error":    lastErr,
		"duration": time.Since(start),
	}).Error("VIES request failed after retries")
	return result
}

type attemptOutcome struct {
	payload *viesResponse
	status  int
	err     error
}

// doRequest performs one GET. The second return is false only for
// retryable network failures; every HTTP response, well-formed or not,
// is final.
func (v *ViesClient) doRequest(ctx context.Context, url string) (attemptOutcome, bool) {
	if err := v.limiter.Wait(ctx); err != nil {
		return attemptOutcome{err: err}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return attemptOutcome{err: err}, false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return attemptOutcome{err: err}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return attemptOutcome{status: resp.StatusCode, err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}, true
	}

	var payload viesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return attemptOutcome{status: resp.StatusCode, err: fmt.Errorf("malformed VIES response: %w", err)}, true
	}

	return attemptOutcome{payload: &payload, status: resp.StatusCode}, true
}

// finish maps a final HTTP outcome into the result and records the live log
// line plus the cache entry for definitive answers.
func (v *ViesClient) finish(result *models.VatResult, outcome attemptOutcome, vatNumber, url string, logger *logrus.Entry, start time.Time) {
	if outcome.payload == nil {
		v.finishError(result, models.CodeServiceUnavailable, outcome.err, url)
		logger.WithFields(logrus.Fields{
			"status": outcome.status,
			"error":  outcome.err,
		}).Warn("VIES returned an unusable response")
		return
	}

	payload := outcome.payload
	result.Valid = firstBool(payload.IsValid, payload.Valid)
	result.CompanyName = firstNonEmpty(payload.Name, payload.TraderName)
	result.CompanyAddress = firstNonEmpty(payload.Address, payload.TraderAddress)
	result.RequestDate = payload.RequestDate

	switch {
	case payload.UserError != "" && payload.UserError != string(models.CodeValid) && payload.UserError != string(models.CodeInvalid):
		result.ErrorCode = models.ParseUserError(payload.UserError)
		result.ErrorMessage = payload.UserError
	case result.Valid != nil && *result.Valid:
		result.ErrorCode = models.CodeValid
	case result.Valid != nil:
		result.ErrorCode = models.CodeInvalid
	default:
		result.ErrorCode = models.CodeUnknown
	}

	if v.cache != nil {
		v.cache.Set(context.Background(), vatNumber, result)
	}

	v.stream.Appendf("200 %s valid=%s name=%q code=%s", url, boolString(result.Valid), result.CompanyName, result.ErrorCode)
	logger.WithFields(logrus.Fields{
		"code":     result.ErrorCode,
		"duration": time.Since(start),
	}).Info("VIES lookup completed")
}

func (v *ViesClient) finishError(result *models.VatResult, code models.ErrorCode, err error, url string) {
	result.ErrorCode = code
	if err != nil {
		result.ErrorMessage = err.Error()
	}
	v.stream.Appendf("ERR %s code=%s err=%v", url, code, err)
}

// Health returns client health status
func (v *ViesClient) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":        "healthy",
		"base_url":      v.config.BaseURL,
		"request_count": atomic.LoadInt64(&v.requestCounter),
		"cache_enabled": v.cache != nil,
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func firstBool(values ...*bool) *bool {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// firstNonEmpty picks the first usable alias; VIES uses "---" as an
// explicit "not disclosed" placeholder.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" && v != "---" {
			return v
		}
	}
	return ""
}

func boolString(b *bool) string {
	if b == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *b)
}
