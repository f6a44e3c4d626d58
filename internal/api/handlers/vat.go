package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/nexconsult/vies-api/internal/vat"
	"github.com/sirupsen/logrus"
)

// VATHandler handles VAT validation requests
type VATHandler struct {
	viesService  services.ValidatorInterface
	batchService services.BatchInterface
	maxInline    int
	logger       *logrus.Logger
}

// NewVATHandler creates a new VAT handler
func NewVATHandler(viesService services.ValidatorInterface, batchService services.BatchInterface, maxInline int, logger *logrus.Logger) *VATHandler {
	if maxInline < 1 {
		maxInline = 100
	}
	return &VATHandler{
		viesService:  viesService,
		batchService: batchService,
		maxInline:    maxInline,
		logger:       logger,
	}
}

// Validate handles a single VAT lookup
// @Summary Validate a VAT number
// @Description Validate one EU VAT number against the VIES service
// @Tags VAT
// @Produce json
// @Param country path string true "Two-letter EU country code" example(IT)
// @Param number path string true "VAT number without country prefix" example(05159640266)
// @Success 200 {object} models.VatResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /vat/{country}/{number} [get]
func (h *VATHandler) Validate(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")

	query, err := vat.Parse(c.Param("country") + c.Param("number"))
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"country":    c.Param("country"),
			"number":     c.Param("number"),
		}).Warn("Invalid VAT number format")

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid VAT number",
			Message:   err.Error(),
			Code:      string(models.CodeInvalidInput),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	result := h.viesService.Validate(c.Request.Context(), query.CountryCode, query.Number)

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"vat":        query.Format(),
		"code":       result.ErrorCode,
		"duration":   time.Since(start),
	}).Info("VAT validation completed")

	if result.Cache {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}

	switch result.ErrorCode {
	case models.CodeTimeout:
		c.JSON(http.StatusGatewayTimeout, result)
	case models.CodeServiceUnavailable, models.CodeMSUnavailable,
		models.CodeGlobalMaxConcurrent, models.CodeMSMaxConcurrent:
		c.JSON(http.StatusBadGateway, result)
	default:
		c.JSON(http.StatusOK, result)
	}
}

// ValidateBatch handles an inline synchronous batch
// @Summary Validate multiple VAT numbers
// @Description Validate a list of country-prefixed VAT numbers in one call
// @Tags VAT
// @Accept json
// @Produce json
// @Param request body models.BatchRequest true "Batch request"
// @Success 200 {object} models.BatchResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /vat/batch [post]
func (h *VATHandler) ValidateBatch(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")

	var request models.BatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid request format",
			Message:   err.Error(),
			Code:      "INVALID_REQUEST",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	if len(request.VATNumbers) > h.maxInline {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Batch too large",
			Message:   "Submit large batches as a spreadsheet job instead",
			Code:      "BATCH_TOO_LARGE",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"count":      len(request.VATNumbers),
	}).Info("Processing inline batch validation")

	job, err := h.batchService.Run(c.Request.Context(), models.RowsFromNumbers(request.VATNumbers))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   err.Error(),
			Code:      "BATCH_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	if err := job.Wait(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Batch interrupted",
			Message:   err.Error(),
			Code:      "BATCH_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	response := models.BatchResponse{
		Results:    job.Results(),
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
	}
	response.Summarize()

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"total":      response.Total,
		"valid":      response.Valid,
		"invalid":    response.Invalid,
		"errors":     response.Errors,
		"duration":   time.Since(start),
	}).Info("Inline batch validation completed")

	c.JSON(http.StatusOK, response)
}
