package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexconsult/vies-api/internal/models"
	"github.com/xuri/excelize/v2"
)

// Appended result columns, in export order.
var resultColumns = []string{"Country Code", "Valid", "Company Name", "Company Address", "Request Date", "Error Code"}

const exportSheet = "VAT Results"

// WriteError reports a failed export. The batch results are untouched, so
// the caller can retry with another path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// DefaultOutputPath derives an export path from the input path, keeping the
// input format: "clients.xlsx" becomes "clients_results.xlsx".
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_results" + ext
}

// Export writes the annotated table to path, all or nothing: the file is
// assembled in a temp file next to the target and renamed into place, so an
// interrupted export never leaves a partial file. Format follows the
// extension (.xlsx or .csv).
func Export(table *Table, results []models.VatResult, path string) error {
	byIndex := make(map[int]models.VatResult, len(results))
	for _, r := range results {
		byIndex[r.Query.SourceRowIndex] = r
	}

	var write func(io.Writer) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = func(w io.Writer) error { return writeCSV(w, table, byIndex) }
	case ".xlsx", ".xlsm":
		write = func(w io.Writer) error { return writeXLSX(w, table, byIndex) }
	default:
		return &WriteError{Path: path, Err: fmt.Errorf("unsupported output format %q (want .xlsx or .csv)", filepath.Ext(path))}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vat-export-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	writeErr := write(tmp)

	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: writeErr}
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// BuildWorkbook assembles the annotated workbook in memory, for callers
// that stream it instead of writing a file.
func BuildWorkbook(table *Table, results []models.VatResult) (*excelize.File, error) {
	byIndex := make(map[int]models.VatResult, len(results))
	for _, r := range results {
		byIndex[r.Query.SourceRowIndex] = r
	}
	return buildWorkbook(table, byIndex)
}

func buildWorkbook(table *Table, byIndex map[int]models.VatResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	header := headerRow(table)
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		data := dataRow(table, row, byIndex)
		if err := f.SetSheetRow(exportSheet, cell, &data); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func writeXLSX(w io.Writer, table *Table, byIndex map[int]models.VatResult) error {
	f, err := buildWorkbook(table, byIndex)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteTo(w)
	return err
}

func writeCSV(w io.Writer, table *Table, byIndex map[int]models.VatResult) error {
	writer := csv.NewWriter(w)

	record := make([]string, 0, len(table.Headers)+len(resultColumns))
	for _, v := range headerRow(table) {
		record = append(record, fmt.Sprint(v))
	}
	if err := writer.Write(record); err != nil {
		return err
	}

	for _, row := range table.Rows {
		record = record[:0]
		for _, v := range dataRow(table, row, byIndex) {
			record = append(record, fmt.Sprint(v))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func headerRow(table *Table) []interface{} {
	out := make([]interface{}, 0, len(table.Headers)+len(resultColumns))
	for _, h := range table.Headers {
		out = append(out, h)
	}
	for _, h := range resultColumns {
		out = append(out, h)
	}
	return out
}

// dataRow renders one export row: the original cells (with the optional
// Name column overwritten by the validated company name) followed by the
// result columns. Rows without a result, possible after cancellation, get
// blank result cells.
func dataRow(table *Table, row models.Row, byIndex map[int]models.VatResult) []interface{} {
	result, hasResult := byIndex[row.Index]

	out := make([]interface{}, 0, len(table.Headers)+len(resultColumns))
	for _, h := range table.Headers {
		value := row.Original[h]
		if h == ColumnName && hasResult && result.CompanyName != "" {
			value = result.CompanyName
		}
		out = append(out, value)
	}

	if !hasResult {
		for range resultColumns {
			out = append(out, "")
		}
		return out
	}

	out = append(out,
		result.Query.CountryCode,
		validCell(&result),
		result.CompanyName,
		result.CompanyAddress,
		result.RequestDate,
		string(result.ErrorCode),
	)
	return out
}

func validCell(r *models.VatResult) string {
	if r.Valid == nil {
		return ""
	}
	if *r.Valid {
		return "TRUE"
	}
	return "FALSE"
}
