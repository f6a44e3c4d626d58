package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubValidator maps canonical VAT strings to canned results; unknown
// numbers come back INVALID.
type stubValidator struct {
	results map[string]models.VatResult
}

func (s *stubValidator) Validate(ctx context.Context, countryCode, number string) models.VatResult {
	if r, ok := s.results[countryCode+number]; ok {
		r.Query = models.VatQuery{CountryCode: countryCode, Number: number}
		return r
	}
	invalid := false
	return models.VatResult{
		Query:            models.VatQuery{CountryCode: countryCode, Number: number},
		Valid:            &invalid,
		ErrorCode:        models.CodeInvalid,
		RequestTimestamp: time.Now(),
	}
}

func (s *stubValidator) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

func validStub(vat, name string) *stubValidator {
	valid := true
	return &stubValidator{results: map[string]models.VatResult{
		vat: {Valid: &valid, ErrorCode: models.CodeValid, CompanyName: name},
	}}
}

func newVATRouter(validator services.ValidatorInterface) *gin.Engine {
	batch := services.NewBatchService(validator, 2, 0, testLogger())
	handler := NewVATHandler(validator, batch, 10, testLogger())

	router := gin.New()
	router.GET("/api/v1/vat/:country/:number", handler.Validate)
	router.POST("/api/v1/vat/batch", handler.ValidateBatch)
	return router
}

func TestValidateEndpoint(t *testing.T) {
	router := newVATRouter(validStub("IT05159640266", "ACME SRL"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vat/IT/05159640266", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var result models.VatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotNil(t, result.Valid)
	assert.True(t, *result.Valid)
	assert.Equal(t, "ACME SRL", result.CompanyName)
}

func TestValidateEndpointBadCountry(t *testing.T) {
	router := newVATRouter(validStub("IT05159640266", "ACME SRL"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vat/ZZ/123456", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(models.CodeInvalidInput), resp.Code)
}

func TestValidateEndpointUpstreamFailureStatus(t *testing.T) {
	cases := []struct {
		code models.ErrorCode
		want int
	}{
		{models.CodeTimeout, http.StatusGatewayTimeout},
		{models.CodeServiceUnavailable, http.StatusBadGateway},
		{models.CodeMSUnavailable, http.StatusBadGateway},
		{models.CodeMSMaxConcurrent, http.StatusBadGateway},
	}

	for _, tc := range cases {
		validator := &stubValidator{results: map[string]models.VatResult{
			"IT05159640266": {ErrorCode: tc.code},
		}}
		router := newVATRouter(validator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vat/IT/05159640266", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, tc.want, w.Code, "code %s", tc.code)
	}
}

func TestValidateBatchEndpoint(t *testing.T) {
	router := newVATRouter(validStub("IT05159640266", "ACME SRL"))

	body, _ := json.Marshal(models.BatchRequest{
		VATNumbers: []string{"IT05159640266", "DE129273398", "garbage"},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vat/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Valid)
	assert.Equal(t, 1, resp.Invalid)
	assert.Equal(t, 1, resp.Errors, "unparseable numbers count as errors")
	require.Len(t, resp.Results, 3)
	assert.Equal(t, models.CodeInvalidInput, resp.Results[2].ErrorCode)
}

func TestValidateBatchEndpointRejectsEmptyList(t *testing.T) {
	router := newVATRouter(validStub("IT05159640266", "ACME SRL"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vat/batch", bytes.NewReader([]byte(`{"vat_numbers":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateBatchEndpointRejectsOversizedBatch(t *testing.T) {
	router := newVATRouter(validStub("IT05159640266", "ACME SRL"))

	numbers := make([]string, 11)
	for i := range numbers {
		numbers[i] = "IT05159640266"
	}
	body, _ := json.Marshal(models.BatchRequest{VATNumbers: numbers})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vat/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BATCH_TOO_LARGE", resp.Code)
}
