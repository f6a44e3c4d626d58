package models

import "time"

// BatchResponse is returned by the inline batch endpoint once every number
// has a result.
type BatchResponse struct {
	Results    []VatResult `json:"results"`
	Total      int         `json:"total" example:"3"`
	Valid      int         `json:"valid" example:"2"`
	Invalid    int         `json:"invalid" example:"1"`
	Errors     int         `json:"errors" example:"0"`
	DurationMs int64       `json:"duration_ms" example:"843"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Summarize fills the counters from the result list.
func (b *BatchResponse) Summarize() {
	b.Total = len(b.Results)
	b.Valid, b.Invalid, b.Errors = 0, 0, 0
	for i := range b.Results {
		switch {
		case b.Results[i].ErrorCode == CodeValid:
			b.Valid++
		case b.Results[i].ErrorCode == CodeInvalid:
			b.Invalid++
		default:
			b.Errors++
		}
	}
}
