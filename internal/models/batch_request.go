package models

// BatchRequest is the payload for an inline batch validation.
// @Description List of VAT numbers to validate in one request
type BatchRequest struct {
	// VAT numbers, country-prefixed (e.g. "IT05159640266"); separators are tolerated
	VATNumbers []string `json:"vat_numbers" binding:"required,min=1,max=500" example:"IT05159640266,DE129273398"`
}

// Row is one parsed spreadsheet row: the VAT cell plus the untouched
// original cells, keyed by header name. Index is the zero-based position in
// the input order and is what export sorts by.
type Row struct {
	Index     int               `json:"index"`
	VATNumber string            `json:"vat_number"`
	Original  map[string]string `json:"original,omitempty"`
}

// RowsFromNumbers adapts a plain list of VAT strings into rows, preserving
// list order as the source row order.
func RowsFromNumbers(numbers []string) []Row {
	rows := make([]Row, len(numbers))
	for i, n := range numbers {
		rows[i] = Row{Index: i, VATNumber: n}
	}
	return rows
}
