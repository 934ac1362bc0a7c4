package parse

import (
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

const (
	minDateSerial = 2
	maxDateSerial = 59999
)

// Serial 1 is 1900-01-01 in Excel, but Excel also counts a 1900-02-29 that
// never existed. Counting from 1899-12-30 lines up every serial from 61
// onward; serial 2 lands on 1900-01-01.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateColumnHints = []string{"tanggal", "date", "tgl"}

// IsDateColumn reports whether a column name marks its values as dates.
func IsDateColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range dateColumnHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// SerialToDate renders an integer serial in [2, 59999] as M/D/YYYY.
// Anything else is returned unchanged with ok false.
func SerialToDate(value string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < minDateSerial || n > maxDateSerial {
		return value, false
	}
	return serialEpoch.AddDate(0, 0, n).Format("1/2/2006"), true
}

// convertDateSerials rewrites date serials in date-named columns in place.
func convertDateSerials(rows []dataset.Row) {
	isDate := make(map[string]bool)
	for _, row := range rows {
		for col, v := range row {
			dated, seen := isDate[col]
			if !seen {
				dated = IsDateColumn(col)
				isDate[col] = dated
			}
			if !dated {
				continue
			}
			if converted, ok := SerialToDate(v); ok {
				row[col] = converted
			}
		}
	}
}
