// Package parse turns uploaded files into datasets.
//
// Two source formats are understood, chosen solely by file extension:
//
//   - DelimitedText (.csv): semicolon- or comma-separated lines
//   - SpreadsheetBinary (.xlsx): one sheet of an Excel workbook
//
// Parsing is all-or-nothing. On any failure the caller receives one error
// matching a sentinel below and no partial dataset.
package parse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

var (
	ErrEmptyInput           = errors.New("file contains no data rows")
	ErrNoSheets             = errors.New("workbook has no sheets")
	ErrSheetNotFound        = errors.New("sheet not found")
	ErrUnsupportedExtension = errors.New("only .csv or .xlsx files are supported")
)

// SheetNotFoundError lists the sheets a workbook actually has so a
// misnamed file can be diagnosed.
type SheetNotFoundError struct {
	Want      string
	Marker    string
	Available []string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet %q not found (and no sheet name contains %q); available sheets: [%s]",
		e.Want, e.Marker, strings.Join(e.Available, ", "))
}

func (e *SheetNotFoundError) Is(target error) bool { return target == ErrSheetNotFound }

// Format is a source file format.
type Format string

const (
	DelimitedText     Format = "csv"
	SpreadsheetBinary Format = "xlsx"
)

// Options tunes parsing. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// SheetName is matched exactly (case-sensitive) first.
	SheetName string
	// SheetMarker is matched case-insensitively as a substring when no sheet
	// is named SheetName.
	SheetMarker string
	// ConvertDateSerials enables the spreadsheet date-serial pass.
	ConvertDateSerials bool
	// RawCells reads spreadsheet cells without applying number formats.
	RawCells bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		SheetName:          "Sheet1",
		SheetMarker:        "dbase",
		ConvertDateSerials: true,
	}
}

type decoder func(ctx context.Context, r io.Reader, opts Options) (*dataset.Dataset, error)

var (
	formats   = make(map[string]Format)
	decoders  = make(map[Format]decoder)
	formatsMu sync.RWMutex
)

func init() {
	register(".csv", DelimitedText, parseDelimited)
	register(".xlsx", SpreadsheetBinary, parseWorkbook)
}

// register binds a file extension to a format and its decoder.
// Panics if the extension is already bound.
func register(ext string, f Format, dec decoder) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	ext = strings.ToLower(ext)
	if _, exists := formats[ext]; exists {
		panic(fmt.Sprintf("extension already registered: %s", ext))
	}
	formats[ext] = f
	decoders[f] = dec
}

// FormatForFile picks the format from the file name's extension.
func FormatForFile(name string) (Format, error) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	f, ok := formats[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", ErrUnsupportedExtension
	}
	return f, nil
}

// Extensions returns the accepted file extensions, sorted.
func Extensions() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse decodes r in the given format.
func Parse(ctx context.Context, r io.Reader, f Format, opts Options) (*dataset.Dataset, error) {
	formatsMu.RLock()
	dec, ok := decoders[f]
	formatsMu.RUnlock()
	if !ok {
		return nil, ErrUnsupportedExtension
	}

	ds, err := dec(ctx, r, opts)
	if err != nil {
		return nil, err
	}
	if ds.Empty() {
		return nil, ErrEmptyInput
	}
	return ds, nil
}

// ParseFile is Parse with the format taken from name.
func ParseFile(ctx context.Context, name string, r io.Reader, opts Options) (*dataset.Dataset, error) {
	f, err := FormatForFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, r, f, opts)
}
