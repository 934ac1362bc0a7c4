package parse

import "strconv"

const emptyHeader = "__EMPTY"

// uniqueHeaders names blank header cells __EMPTY and suffixes repeats with
// _1, _2, ... so every header is a distinct row key.
func uniqueHeaders(cells []string) []string {
	out := make([]string, len(cells))
	seen := make(map[string]bool, len(cells))
	for i, c := range cells {
		base := c
		if base == "" {
			base = emptyHeader
		}
		name := base
		for n := 1; seen[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
