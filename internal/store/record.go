package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

type record struct {
	Timestamp string            `json:"timestamp"`
	Headers   []string          `json:"headers"`
	Rows      []json.RawMessage `json:"rows"`
}

func encodeRecord(ds *dataset.Dataset, savedAt time.Time) ([]byte, error) {
	rows := make([]map[string]string, len(ds.Rows))
	for i, r := range ds.Rows {
		rows[i] = r
	}
	return json.Marshal(struct {
		Timestamp string              `json:"timestamp"`
		Headers   []string            `json:"headers"`
		Rows      []map[string]string `json:"rows"`
	}{
		Timestamp: savedAt.Format(time.RFC3339Nano),
		Headers:   ds.Headers,
		Rows:      rows,
	})
}

// decodeRecord validates the record shape. Cells may be any JSON scalar,
// since older records stored numbers as numbers; they come back as text.
func decodeRecord(data []byte) (*dataset.Dataset, error) {
	var rec record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return nil, corrupt("invalid JSON: %v", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, corrupt("trailing data after record")
	}
	if rec.Headers == nil {
		return nil, corrupt("missing headers")
	}
	if rec.Rows == nil {
		return nil, corrupt("missing rows")
	}

	savedAt, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return nil, corrupt("bad timestamp %q", rec.Timestamp)
	}

	seen := make(map[string]bool, len(rec.Headers))
	for _, h := range rec.Headers {
		if seen[h] {
			return nil, corrupt("duplicate header %q", h)
		}
		seen[h] = true
	}

	rows := make([]dataset.Row, len(rec.Rows))
	for i, raw := range rec.Rows {
		row, err := decodeRow(raw)
		if err != nil {
			return nil, corrupt("row %d: %v", i, err)
		}
		rows[i] = row
	}

	return &dataset.Dataset{Headers: rec.Headers, Rows: rows, SavedAt: savedAt}, nil
}

func decodeRow(raw json.RawMessage) (dataset.Row, error) {
	var cells map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&cells); err != nil {
		return nil, err
	}
	if cells == nil {
		return nil, fmt.Errorf("not an object")
	}

	row := make(dataset.Row, len(cells))
	for k, v := range cells {
		switch v := v.(type) {
		case string:
			row[k] = v
		case json.Number:
			row[k] = v.String()
		case bool:
			row[k] = fmt.Sprint(v)
		case nil:
			row[k] = ""
		default:
			return nil, fmt.Errorf("column %q holds a %T", k, v)
		}
	}
	return row, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptRecord, fmt.Sprintf(format, args...))
}
