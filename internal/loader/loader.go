// Package loader reads the employer jobs dataset and filters it to a single state.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnknownOlympus/jobmap/internal/models"
	"github.com/jszwec/csvutil"
	"github.com/tealeg/xlsx/v2"
)

// RequiredColumns lists the header columns the address pipeline cannot work without.
var RequiredColumns = []string{
	"EMPLOYER_ADDRESS_1",
	"EMPLOYER_CITY",
	"EMPLOYER_STATE",
	"EMPLOYER_POSTAL_CODE",
}

// ErrMissingColumn is returned when the input header lacks one of RequiredColumns.
var ErrMissingColumn = errors.New("input is missing a required column")

const utf8BOM = "\ufeff"

// Load reads the dataset at path and returns the rows whose EMPLOYER_STATE equals stateCode.
// Files ending in .xlsx are read from their first sheet; anything else is parsed as CSV.
func Load(path, stateCode string) ([]models.Record, error) {
	var (
		records []models.Record
		err     error
	)

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err = readXLSX(path)
	} else {
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}

	return Filter(records, stateCode), nil
}

// Filter keeps the records whose state matches stateCode exactly.
func Filter(records []models.Record, stateCode string) []models.Record {
	filtered := make([]models.Record, 0, len(records))
	for _, record := range records {
		if record.State == stateCode {
			filtered = append(filtered, record)
		}
	}

	return filtered
}

func readCSV(path string) ([]models.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read input header: %w", err)
	}

	return decode(reader, header)
}

func readXLSX(path string) ([]models.Record, error) {
	workbook, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input workbook: %w", err)
	}
	if len(workbook.Sheets) == 0 {
		return nil, fmt.Errorf("failed to read input workbook: %s has no sheets", path)
	}

	rows := workbook.Sheets[0].Rows
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to read input header: %w", io.EOF)
	}

	header := cellStrings(rows[0], 0)
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := cellStrings(row, len(header))
		if isBlank(cells) {
			continue
		}
		body = append(body, cells)
	}

	return decode(&sliceReader{rows: body}, header)
}

// decode maps the rows produced by reader onto records using the given header.
func decode(reader csvutil.Reader, header []string) ([]models.Record, error) {
	header = cleanHeader(header)
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, fmt.Errorf("failed to create row decoder: %w", err)
	}

	var records []models.Record
	for {
		var record models.Record
		if err = dec.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode input row %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func cleanHeader(header []string) []string {
	cleaned := make([]string, len(header))
	for i, column := range header {
		if i == 0 {
			column = strings.TrimPrefix(column, utf8BOM)
		}
		cleaned[i] = strings.TrimSpace(column)
	}

	return cleaned
}

func checkColumns(header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, column := range header {
		present[column] = struct{}{}
	}

	for _, column := range RequiredColumns {
		if _, ok := present[column]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	return nil
}

// cellStrings converts a worksheet row to strings. When width is positive the
// result is padded or cut to exactly width cells.
func cellStrings(row *xlsx.Row, width int) []string {
	size := len(row.Cells)
	if width > 0 {
		size = width
	}

	cells := make([]string, size)
	for i, cell := range row.Cells {
		if i >= size {
			break
		}
		cells[i] = cell.String()
	}

	return cells
}

func isBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

// sliceReader feeds pre-read worksheet rows to csvutil.
type sliceReader struct {
	rows [][]string
	next int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++

	return row, nil
}
