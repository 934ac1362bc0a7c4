package parse

import (
	"context"
	"io"
	"strings"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

// parseDelimited splits text input into lines and fields. There is no
// quoting: a delimiter inside a field always splits it.
func parseDelimited(ctx context.Context, r io.Reader, _ Options) (*dataset.Dataset, error) {
	text, err := readText(r)
	if err != nil {
		return nil, err
	}

	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}

	delim := detectDelimiter(lines[0])
	headers := uniqueHeaders(splitFields(lines[0], delim))

	rows := make([]dataset.Row, 0, len(lines)-1)
	for i, line := range lines[1:] {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields := splitFields(line, delim)
		row := make(dataset.Row, len(headers))
		for j, h := range headers {
			if j < len(fields) {
				row[h] = fields[j]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return &dataset.Dataset{Headers: headers, Rows: rows}, nil
}

// nonBlankLines splits on LF (CR is removed by the trim) and drops lines
// that are empty after trimming.
func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := raw[:0]
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// detectDelimiter inspects only the header line.
func detectDelimiter(header string) string {
	if strings.Contains(header, ";") {
		return ";"
	}
	return ","
}

func splitFields(line, delim string) []string {
	fields := strings.Split(line, delim)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
