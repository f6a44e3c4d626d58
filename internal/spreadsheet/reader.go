// Package spreadsheet reads batch input files and writes annotated result
// files. Inputs arrive as xlsx (the original workflow) or csv; the header
// row is mapped by name so column order never matters.
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

// Input column names fixed by the upstream accounting export.
const (
	ColumnVAT    = "NIF Contraparte"
	ColumnAmount = "Importe"
	ColumnType   = "Tipo"
	// ColumnName is optional on input and overwritten by results on export.
	ColumnName = "Name"
)

var requiredColumns = []string{ColumnVAT, ColumnAmount, ColumnType}

// Table is a parsed input file: the header row plus one Row per line that
// carried a VAT number. Row indexes are zero based over the kept rows and
// define the export order.
type Table struct {
	Headers []string
	Rows    []models.Row
}

// ReadFile parses an input spreadsheet, dispatching on file extension.
func ReadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

func readXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return fromRecords(records)
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		records = append(records, record)
	}

	return fromRecords(records)
}

// fromRecords validates the header row and extracts rows with a VAT cell.
// Rows whose VAT cell is blank are skipped, matching the original import
// behavior.
func fromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("input file is missing required columns: %s", strings.Join(missing, ", "))
	}

	vatCol := index[ColumnVAT]

	table := &Table{Headers: headers}
	for _, record := range records[1:] {
		if vatCol >= len(record) {
			continue
		}
		vatNumber := strings.TrimSpace(record[vatCol])
		if vatNumber == "" {
			continue
		}

		original := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				original[h] = record[i]
			} else {
				original[h] = ""
			}
		}

		table.Rows = append(table.Rows, models.Row{
			Index:     len(table.Rows),
			VATNumber: vatNumber,
			Original:  original,
		})
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("input file contains no VAT numbers")
	}

	return table, nil
}
