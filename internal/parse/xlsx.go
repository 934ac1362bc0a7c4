package parse

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

// parseWorkbook reads one sheet of an .xlsx workbook. The first row holds
// the header cells; each later non-blank row becomes a Row that omits its
// empty cells.
func parseWorkbook(ctx context.Context, r io.Reader, opts Options) (*dataset.Dataset, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer xl.Close()

	sheet, err := resolveSheet(xl.GetSheetList(), opts)
	if err != nil {
		return nil, err
	}

	rows, err := xl.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	var cellOpts []excelize.Options
	if opts.RawCells {
		cellOpts = append(cellOpts, excelize.Options{RawCellValue: true})
	}

	if !rows.Next() {
		return nil, ErrEmptyInput
	}
	headerCells, err := rows.Columns(cellOpts...)
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	columns := uniqueHeaders(trimAll(headerCells))

	var out []dataset.Row
	for n := 0; rows.Next(); n++ {
		if n%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		cells, err := rows.Columns(cellOpts...)
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n+2, err)
		}
		if row := buildRow(columns, cells); len(row) > 0 {
			out = append(out, row)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyInput
	}

	headers := headersOf(columns, out[0])
	if opts.ConvertDateSerials {
		convertDateSerials(out)
	}
	return &dataset.Dataset{Headers: headers, Rows: out}, nil
}

// resolveSheet prefers an exact name match, then the first sheet whose
// name contains the marker.
func resolveSheet(sheets []string, opts Options) (string, error) {
	if len(sheets) == 0 {
		return "", ErrNoSheets
	}
	for _, s := range sheets {
		if s == opts.SheetName {
			return s, nil
		}
	}
	if marker := strings.ToLower(opts.SheetMarker); marker != "" {
		for _, s := range sheets {
			if strings.Contains(strings.ToLower(s), marker) {
				return s, nil
			}
		}
	}
	return "", &SheetNotFoundError{
		Want:      opts.SheetName,
		Marker:    opts.SheetMarker,
		Available: append([]string(nil), sheets...),
	}
}

// buildRow zips header columns to cells. Empty cells and cells beyond the
// header row are left out; an all-empty row yields an empty map.
func buildRow(columns, cells []string) dataset.Row {
	row := make(dataset.Row)
	for i, c := range cells {
		if i >= len(columns) || c == "" {
			continue
		}
		row[columns[i]] = c
	}
	return row
}

// headersOf returns the columns present in the first data row, in column
// order.
func headersOf(columns []string, first dataset.Row) []string {
	headers := make([]string, 0, len(first))
	for _, c := range columns {
		if _, ok := first[c]; ok {
			headers = append(headers, c)
		}
	}
	return headers
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
