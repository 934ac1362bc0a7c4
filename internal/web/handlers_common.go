package web

// handlers_common.go holds request parsing shared by the page and API
// handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
)

// multipartMemory is how much of a multipart body is held in memory
// before spilling to temp files.
const multipartMemory = 8 << 20

func kindParam(r *http.Request) (dataset.Kind, error) {
	return dataset.ParseKind(chi.URLParam(r, "kind"))
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// facetParams collects f[<column>]=<value> parameters.
func facetParams(values url.Values) map[string][]string {
	pairs := make(map[string][]string)
	for key, vals := range values {
		if !strings.HasPrefix(key, "f[") || !strings.HasSuffix(key, "]") {
			continue
		}
		col := key[2 : len(key)-1]
		if col == "" {
			continue
		}
		pairs[col] = append(pairs[col], vals...)
	}
	return pairs
}

// hasQueryParams reports whether the request carries its own search or
// filters instead of relying on the stored state.
func hasQueryParams(values url.Values) bool {
	if values.Has("q") || values.Has("apply") {
		return true
	}
	for key := range values {
		if strings.HasPrefix(key, "f[") {
			return true
		}
	}
	return false
}

// selectionPairs flattens a selection for JSON responses.
func selectionPairs(sel facet.Selection) map[string][]string {
	out := make(map[string][]string)
	for _, col := range sel.Active() {
		out[col] = sel.Values(col)
	}
	return out
}

// readUploadFile returns the name and content of the multipart "file"
// field, enforcing maxSize.
func readUploadFile(w http.ResponseWriter, r *http.Request, maxSize int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, core.ErrFileTooLarge
		}
		return "", nil, fmt.Errorf("%w: %w", core.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, core.ErrNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return "", nil, core.ErrFileTooLarge
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read file: %w", err)
	}
	return header.Filename, data, nil
}

// decodeBody fills v from a JSON body, or from form values when the body
// is not JSON. Form fields use the json tag names.
func decodeBody(r *http.Request, v any, formFields func(get func(string) string)) error {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: %w", errBadRequest, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	formFields(r.PostForm.Get)
	return nil
}

var errBadRequest = errors.New("invalid request body")
