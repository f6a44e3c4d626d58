package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserError(t *testing.T) {
	assert.Equal(t, CodeMSUnavailable, ParseUserError("MS_UNAVAILABLE"))
	assert.Equal(t, CodeTimeout, ParseUserError("TIMEOUT"))
	assert.Equal(t, CodeGlobalMaxConcurrent, ParseUserError("GLOBAL_MAX_CONCURRENT_REQ"))
	assert.Equal(t, CodeUnknown, ParseUserError("BRAND_NEW_CONDITION"))
	assert.Equal(t, CodeUnknown, ParseUserError(""))
}

func TestIsDefinitive(t *testing.T) {
	assert.True(t, CodeValid.IsDefinitive())
	assert.True(t, CodeInvalid.IsDefinitive())

	for _, code := range []ErrorCode{
		CodeInvalidInput, CodeServiceUnavailable, CodeMSUnavailable,
		CodeTimeout, CodeGlobalMaxConcurrent, CodeMSMaxConcurrent, CodeUnknown,
	} {
		assert.False(t, code.IsDefinitive(), "code %s", code)
	}
}

func TestResultIsValid(t *testing.T) {
	valid := true
	invalid := false

	r := VatResult{Valid: &valid, ErrorCode: CodeValid}
	assert.True(t, r.IsValid())

	r = VatResult{Valid: &invalid, ErrorCode: CodeInvalid}
	assert.False(t, r.IsValid())

	r = VatResult{ErrorCode: CodeServiceUnavailable}
	assert.False(t, r.IsValid())
}

func TestBatchResponseSummarize(t *testing.T) {
	valid := true
	invalid := false

	resp := BatchResponse{Results: []VatResult{
		{Valid: &valid, ErrorCode: CodeValid},
		{Valid: &valid, ErrorCode: CodeValid},
		{Valid: &invalid, ErrorCode: CodeInvalid},
		{ErrorCode: CodeTimeout},
	}}
	resp.Summarize()

	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.Valid)
	assert.Equal(t, 1, resp.Invalid)
	assert.Equal(t, 1, resp.Errors)
}

func TestRowsFromNumbers(t *testing.T) {
	rows := RowsFromNumbers([]string{"IT05159640266", "DE129273398"})
	assert.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, "DE129273398", rows[1].VATNumber)
}
