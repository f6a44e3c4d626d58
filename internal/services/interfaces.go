package services

import (
	"context"

	"github.com/nexconsult/vies-api/internal/models"
)

// ValidatorInterface defines the interface for the VIES lookup client
type ValidatorInterface interface {
	// Validate looks up one VAT number. It never returns an error: every
	// failure mode is encoded in the result's error code.
	Validate(ctx context.Context, countryCode, number string) models.VatResult

	// Health returns client health status
	Health() map[string]interface{}
}

// CacheInterface defines the interface for the validation result cache
type CacheInterface interface {
	// Get retrieves a cached result by canonical VAT string
	Get(ctx context.Context, vatNumber string) (*models.VatResult, bool)

	// Set stores a definitive result
	Set(ctx context.Context, vatNumber string, result *models.VatResult)

	// Delete removes a cached result
	Delete(ctx context.Context, vatNumber string) error

	// Clear clears all cached results
	Clear(ctx context.Context) error

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache health status
	Health() map[string]interface{}
}

// BatchInterface defines the interface for the batch orchestrator
type BatchInterface interface {
	// Run starts an asynchronous batch job over the given rows
	Run(ctx context.Context, rows []models.Row) (*Job, error)

	// Get retrieves a job by ID
	Get(id string) (*Job, error)

	// Cancel requests cooperative cancellation of a running job
	Cancel(id string) error

	// Stats returns orchestrator statistics
	Stats() map[string]interface{}
}
