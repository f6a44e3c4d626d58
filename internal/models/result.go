package models

import "time"

// ErrorCode classifies the outcome of one VIES lookup. The values mirror
// the userError strings the VIES REST service itself returns, plus VALID
// for an affirmative answer.
type ErrorCode string

const (
	CodeValid               ErrorCode = "VALID"
	CodeInvalid             ErrorCode = "INVALID"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	CodeMSUnavailable       ErrorCode = "MS_UNAVAILABLE"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeGlobalMaxConcurrent ErrorCode = "GLOBAL_MAX_CONCURRENT_REQ"
	CodeMSMaxConcurrent     ErrorCode = "MS_MAX_CONCURRENT_REQ"
	CodeUnknown             ErrorCode = "UNKNOWN"
)

// IsDefinitive reports whether the code is a real answer about the VAT
// number rather than a transient service condition. Only definitive
// results are safe to cache or to treat as final in a batch.
func (c ErrorCode) IsDefinitive() bool {
	return c == CodeValid || c == CodeInvalid
}

// ParseUserError maps a VIES userError string to an ErrorCode. Strings the
// service has not documented come back as UNKNOWN rather than being
// carried through verbatim.
func ParseUserError(s string) ErrorCode {
	switch ErrorCode(s) {
	case CodeValid, CodeInvalid, CodeInvalidInput, CodeServiceUnavailable,
		CodeMSUnavailable, CodeTimeout, CodeGlobalMaxConcurrent, CodeMSMaxConcurrent:
		return ErrorCode(s)
	default:
		return CodeUnknown
	}
}

// VatQuery is a parsed VAT number ready for lookup.
type VatQuery struct {
	CountryCode string `json:"country_code" example:"IT"`
	Number      string `json:"number" example:"05159640266"`
	// SourceRowIndex ties the query back to its input row for export.
	SourceRowIndex int `json:"source_row_index"`
}

// VatResult is the outcome of one lookup.
// @Description Validation outcome for a single VAT number
type VatResult struct {
	Query VatQuery `json:"query"`

	// Valid is nil when the service never answered the question.
	Valid          *bool  `json:"valid" example:"true"`
	CompanyName    string `json:"company_name,omitempty" example:"ACME SRL"`
	CompanyAddress string `json:"company_address,omitempty"`

	ErrorCode    ErrorCode `json:"error_code" example:"VALID"`
	ErrorMessage string    `json:"error_message,omitempty"`

	// RequestDate is the consultation timestamp as reported by VIES.
	RequestDate      string    `json:"request_date,omitempty" example:"2026-08-31T10:12:04.000Z"`
	RequestTimestamp time.Time `json:"request_timestamp"`
	Cache            bool      `json:"cache" example:"false"`
}

// IsValid reports whether the lookup affirmatively validated the number.
func (r *VatResult) IsValid() bool {
	return r.Valid != nil && *r.Valid && r.ErrorCode == CodeValid
}
