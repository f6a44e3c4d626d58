package models

import "time"

// ErrorResponse is the error envelope returned by every API endpoint.
type ErrorResponse struct {
	Error     string    `json:"error" example:"Invalid VAT number"`
	Message   string    `json:"message" example:"The country prefix is not a recognized EU member state code"`
	Code      string    `json:"code" example:"INVALID_INPUT"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path" example:"/api/v1/vat/ZZ/123456"`
}

// HealthResponse reports liveness plus per-dependency health.
type HealthResponse struct {
	Status    string                 `json:"status" example:"healthy"`
	Service   string                 `json:"service" example:"vies-api"`
	Version   string                 `json:"version" example:"1.0.0"`
	Uptime    string                 `json:"uptime" example:"2h31m"`
	Checks    map[string]interface{} `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
