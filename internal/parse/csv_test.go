package parse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

func parseCSVString(t *testing.T, s string) (*dataset.Dataset, error) {
	t.Helper()
	return Parse(context.Background(), strings.NewReader(s), DelimitedText, DefaultOptions())
}

func TestParseDelimited(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRows    []dataset.Row
	}{
		{
			name:        "semicolon with short row",
			input:       "a;b;c\n1;2\n",
			wantHeaders: []string{"a", "b", "c"},
			wantRows:    []dataset.Row{{"a": "1", "b": "2", "c": ""}},
		},
		{
			name:        "comma with extra field dropped",
			input:       "a,b\n1,2,3\n",
			wantHeaders: []string{"a", "b"},
			wantRows:    []dataset.Row{{"a": "1", "b": "2"}},
		},
		{
			name:        "crlf and blank lines",
			input:       "\r\n name , city \r\n\r\n  Ann , Oslo  \r\n\r\nBo,Bergen",
			wantHeaders: []string{"name", "city"},
			wantRows: []dataset.Row{
				{"name": "Ann", "city": "Oslo"},
				{"name": "Bo", "city": "Bergen"},
			},
		},
		{
			name:        "delimiter chosen from header only",
			input:       "a,b\nx;y,z\n",
			wantHeaders: []string{"a", "b"},
			wantRows:    []dataset.Row{{"a": "x;y", "b": "z"}},
		},
		{
			name:        "byte order mark stripped",
			input:       "\xEF\xBB\xBFid;kota\n7;Medan\n",
			wantHeaders: []string{"id", "kota"},
			wantRows:    []dataset.Row{{"id": "7", "kota": "Medan"}},
		},
		{
			name:        "duplicate and empty headers",
			input:       "a;a;;\n1;2;3;4\n",
			wantHeaders: []string{"a", "a_1", "__EMPTY", "__EMPTY_1"},
			wantRows:    []dataset.Row{{"a": "1", "a_1": "2", "__EMPTY": "3", "__EMPTY_1": "4"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := parseCSVString(t, tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantHeaders, ds.Headers); diff != "" {
				t.Errorf("headers mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRows, ds.Rows); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDelimited_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\r\n  \n", "only;headers\n"} {
		_, err := parseCSVString(t, input)
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Parse(%q) error = %v, want ErrEmptyInput", input, err)
		}
	}
}

func TestParseDelimited_InvalidUTF8(t *testing.T) {
	ds, err := parseCSVString(t, "a;b\nx\xffy;z\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := ds.Rows[0]["a"]; got != "x?y" {
		t.Errorf("row a = %q, want %q", got, "x?y")
	}
}

func TestParseDelimited_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, strings.NewReader("a;b\n1;2\n"), DelimitedText, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestFormatForFile(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"data.csv", DelimitedText, false},
		{"DATA.CSV", DelimitedText, false},
		{"report.xlsx", SpreadsheetBinary, false},
		{"Report.XLSX", SpreadsheetBinary, false},
		{"legacy.xls", "", true},
		{"notes.txt", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		got, err := FormatForFile(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedExtension) {
				t.Errorf("FormatForFile(%q) error = %v, want ErrUnsupportedExtension", tt.name, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("FormatForFile(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}
}

func TestParseFile_RejectsBeforeReading(t *testing.T) {
	r := &failingReader{}
	_, err := ParseFile(context.Background(), "photo.png", r, DefaultOptions())
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("ParseFile() error = %v, want ErrUnsupportedExtension", err)
	}
	if r.reads != 0 {
		t.Errorf("reader was read %d times", r.reads)
	}
}

func TestExtensions(t *testing.T) {
	if diff := cmp.Diff([]string{".csv", ".xlsx"}, Extensions()); diff != "" {
		t.Errorf("Extensions() mismatch (-want +got):\n%s", diff)
	}
}

func TestCountingReader(t *testing.T) {
	var last int64
	cr := NewCountingReader(strings.NewReader("abcdefghij"), 10)
	cr.OnRead = func(read, _ int64) { last = read }

	buf := make([]byte, 4)
	_, _ = cr.Read(buf)
	if cr.Percent() != 40 {
		t.Errorf("Percent() = %d, want 40", cr.Percent())
	}
	for {
		if _, err := cr.Read(buf); err != nil {
			break
		}
	}
	if cr.BytesRead() != 10 || last != 10 {
		t.Errorf("BytesRead() = %d, last callback = %d, want 10", cr.BytesRead(), last)
	}
	if NewCountingReader(strings.NewReader(""), 0).Percent() != 0 {
		t.Error("Percent() with unknown total should be 0")
	}
}

type failingReader struct{ reads int }

func (f *failingReader) Read([]byte) (int, error) {
	f.reads++
	return 0, errors.New("should not be read")
}
