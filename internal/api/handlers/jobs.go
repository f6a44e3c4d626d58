package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/services"
	"github.com/nexconsult/vies-api/internal/spreadsheet"
	"github.com/sirupsen/logrus"
)

// JobsHandler manages spreadsheet-driven batch jobs
type JobsHandler struct {
	batchService services.BatchInterface
	logger       *logrus.Logger

	// tables keeps the parsed input of each job for export; results alone
	// cannot rebuild the passthrough columns.
	mu     sync.RWMutex
	tables map[string]*spreadsheet.Table
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(batchService services.BatchInterface, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{
		batchService: batchService,
		logger:       logger,
		tables:       make(map[string]*spreadsheet.Table),
	}
}

// Create starts a batch job from an uploaded spreadsheet
// @Summary Start a batch validation job
// @Description Upload an xlsx or csv file and start validating its VAT numbers
// @Tags Jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Input spreadsheet (NIF Contraparte, Importe, Tipo columns)"
// @Success 202 {object} models.JobSnapshot
// @Failure 400 {object} models.ErrorResponse
// @Router /jobs [post]
func (h *JobsHandler) Create(c *gin.Context) {
	requestID := c.GetString("request_id")

	upload, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Missing file",
			Message:   "Attach the input spreadsheet as form field \"file\"",
			Code:      "MISSING_FILE",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("vies-upload-%d%s", time.Now().UnixNano(), filepath.Ext(upload.Filename)))
	if err := c.SaveUploadedFile(upload, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Upload failed",
			Message:   err.Error(),
			Code:      "UPLOAD_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}
	defer os.Remove(tmpPath)

	table, err := spreadsheet.ReadFile(tmpPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Unreadable input file",
			Message:   err.Error(),
			Code:      "INVALID_FILE",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	// Detached from the request context: the job outlives this upload.
	job, err := h.batchService.Run(context.Background(), table.Rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Failed to start job",
			Message:   err.Error(),
			Code:      "BATCH_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.mu.Lock()
	h.tables[job.ID] = table
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"job_id":     job.ID,
		"file":       upload.Filename,
		"rows":       len(table.Rows),
	}).Info("Batch job created from upload")

	c.JSON(http.StatusAccepted, job.Snapshot(false))
}

// Get returns job status and progress
// @Summary Get job status
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Param results query bool false "Include per-row results"
// @Success 200 {object} models.JobSnapshot
// @Failure 404 {object} models.ErrorResponse
// @Router /jobs/{id} [get]
func (h *JobsHandler) Get(c *gin.Context) {
	job, err := h.batchService.Get(c.Param("id"))
	if err != nil {
		h.notFound(c, err)
		return
	}

	includeResults := c.Query("results") == "true"
	c.JSON(http.StatusOK, job.Snapshot(includeResults))
}

// Cancel requests cooperative cancellation of a running job
// @Summary Cancel a job
// @Description In-flight lookups finish; nothing new is dispatched
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} models.JobSnapshot
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /jobs/{id}/cancel [post]
func (h *JobsHandler) Cancel(c *gin.Context) {
	id := c.Param("id")

	if err := h.batchService.Cancel(id); err != nil {
		job, getErr := h.batchService.Get(id)
		if getErr != nil {
			h.notFound(c, getErr)
			return
		}
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:     "Cannot cancel job",
			Message:   err.Error(),
			Code:      string(job.Status()),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	job, _ := h.batchService.Get(id)
	c.JSON(http.StatusAccepted, job.Snapshot(false))
}

// Export streams the annotated spreadsheet for a finished job
// @Summary Export job results
// @Description Download the original rows with validation columns appended, in input row order
// @Tags Jobs
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Job ID"
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /jobs/{id}/export [get]
func (h *JobsHandler) Export(c *gin.Context) {
	job, err := h.batchService.Get(c.Param("id"))
	if err != nil {
		h.notFound(c, err)
		return
	}

	switch job.Status() {
	case models.JobDone, models.JobCancelled:
	default:
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:     "Job still running",
			Message:   "Wait for the job to finish (or cancel it) before exporting",
			Code:      string(job.Status()),
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.mu.RLock()
	table := h.tables[job.ID]
	h.mu.RUnlock()
	if table == nil {
		// Inline jobs have no stored input table; rebuild a single-column one.
		rows := append([]models.Row(nil), job.Rows()...)
		for i := range rows {
			if rows[i].Original == nil {
				rows[i].Original = map[string]string{spreadsheet.ColumnVAT: rows[i].VATNumber}
			}
		}
		table = &spreadsheet.Table{Headers: []string{spreadsheet.ColumnVAT}, Rows: rows}
	}

	workbook, err := spreadsheet.BuildWorkbook(table, job.Results())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Export failed",
			Message:   err.Error(),
			Code:      "EXPORT_ERROR",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}
	defer workbook.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=vat-results-%s.xlsx", job.ID))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if _, err := workbook.WriteTo(c.Writer); err != nil {
		h.logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"error":  err.Error(),
		}).Error("Failed to stream export")
	}
}

func (h *JobsHandler) notFound(c *gin.Context, err error) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:     "Job not found",
		Message:   err.Error(),
		Code:      "JOB_NOT_FOUND",
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
