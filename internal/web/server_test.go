package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabview/internal/config"
	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/store"
	"github.com/JonMunkholm/tabview/internal/web/templates"
)

const staffCSV = "Nama;Unit;Kota\nAnn;HR;Oslo\nBo;Ops;Bergen\nCy;HR;Bergen\n"

type testEnv struct {
	svc *core.Service
	srv *Server
	cfg *config.Config
}

func newTestEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.Rate.Enabled = false
	for _, fn := range tweak {
		fn(cfg)
	}

	svc := core.NewService(store.New(store.NewMemoryBackend()), core.Options{ResultTTL: time.Minute})
	srv := NewServer(svc, cfg)
	t.Cleanup(srv.Close)
	return &testEnv{svc: svc, srv: srv, cfg: cfg}
}

func (e *testEnv) seed(t *testing.T, kind dataset.Kind, body string) {
	t.Helper()
	_, err := e.svc.Upload(context.Background(), kind, "seed.csv", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func multipartFile(t *testing.T, method, path, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUploadAPI(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(multipartFile(t, http.MethodPost, "/api/upload/main", "staff.csv", staffCSV))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decode[map[string]string](t, rec)["upload_id"]
	require.NotEmpty(t, id)

	rec = e.get("/api/upload/" + id + "/result")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[UploadResultResponse](t, rec)
	assert.Equal(t, "complete", res.Phase)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, "Upload main succeeded (3 rows)", res.Message)
	assert.NotNil(t, res.SavedAt)

	rec = e.get("/api/datasets/main")
	st := decode[core.DatasetStatus](t, rec)
	assert.True(t, st.Exists)
	assert.Equal(t, 3, st.Rows)
}

func TestUploadAPI_Errors(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
	}{
		{"unsupported extension", multipartFile(t, http.MethodPost, "/api/upload/main", "notes.txt", "a"), http.StatusUnsupportedMediaType, "FILE002"},
		{"unknown kind", multipartFile(t, http.MethodPost, "/api/upload/archive", "a.csv", "a\n1"), http.StatusNotFound, "REQ001"},
		{"too large", multipartFile(t, http.MethodPost, "/api/upload/main", "big.csv", strings.Repeat("x", 200)), http.StatusRequestEntityTooLarge, "FILE001"},
		{"no file", httptest.NewRequest(http.MethodPost, "/api/upload/main", strings.NewReader("")), http.StatusBadRequest, "FILE004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUploadProgressStream(t *testing.T) {
	e := newTestEnv(t)
	id, err := e.svc.StartUpload(context.Background(), dataset.KindHistory, "h.csv", []byte(staffCSV))
	require.NoError(t, err)

	rec := e.get("/api/upload/" + id + "/progress")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, `"phase":"complete"`)

	assert.Equal(t, http.StatusNotFound, e.get("/api/upload/missing/progress").Code)
}

func TestRowsAPI(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, dataset.KindMain, staffCSV)

	rows := decode[RowsResponse](t, e.get("/api/datasets/main/rows?q=bergen"))
	assert.Equal(t, 2, rows.Total)
	assert.Equal(t, []string{"Nama", "Unit", "Kota"}, rows.Headers)

	rows = decode[RowsResponse](t, e.get("/api/datasets/main/rows?q=bergen&f[Unit]=HR"))
	require.Equal(t, 1, rows.Total)
	assert.Equal(t, "Cy", rows.Rows[0]["Nama"])

	rows = decode[RowsResponse](t, e.get("/api/datasets/main/rows?limit=1"))
	assert.Equal(t, 3, rows.Total)
	assert.Equal(t, 1, rows.Shown)
	assert.True(t, rows.Truncated)

	c, _ := e.svc.Context(dataset.KindMain)
	assert.Empty(t, c.Search, "ad hoc queries must not change stored state")

	rec := e.get("/api/datasets/main/rows?f[Unit]=Legal")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ002", decode[ErrorResponse](t, rec).Code)

	empty := decode[RowsResponse](t, e.get("/api/datasets/history/rows"))
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Rows)
}

func TestStateAPI(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, dataset.KindMain, staffCSV)

	req := httptest.NewRequest(http.MethodPut, "/api/datasets/main/search", strings.NewReader(`{"q":"bergen"}`))
	req.Header.Set("Content-Type", "application/json")
	state := decode[StateResponse](t, e.do(req))
	assert.Equal(t, "bergen", state.Search)
	assert.Equal(t, 2, state.Total)

	req = httptest.NewRequest(http.MethodPost, "/api/datasets/main/filters/toggle", strings.NewReader("column=Unit&value=Ops&checked=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	state = decode[StateResponse](t, e.do(req))
	assert.Equal(t, map[string][]string{"Unit": {"Ops"}}, state.Filters)
	assert.Equal(t, 1, state.Total)

	rows := decode[RowsResponse](t, e.get("/api/datasets/main/rows"))
	assert.Equal(t, 1, rows.Total, "rows without parameters use the stored state")

	facets := decode[FacetsResponse](t, e.get("/api/datasets/main/facets"))
	require.Len(t, facets.Columns, 2)
	assert.Equal(t, "Unit", facets.Columns[0].Name)
	assert.Contains(t, facets.Columns[0].Values, FacetValue{Value: "Ops", Checked: true})

	state = decode[StateResponse](t, e.do(httptest.NewRequest(http.MethodPost, "/api/datasets/main/filters/reset", nil)))
	assert.Empty(t, state.Filters)
	assert.Equal(t, "bergen", state.Search)

	req = httptest.NewRequest(http.MethodPost, "/api/datasets/main/filters/toggle", strings.NewReader(`{"column":"Nama","value":"Ann","checked":true}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)
}

func TestFacetsPlaceholder(t *testing.T) {
	e := newTestEnv(t)
	facets := decode[FacetsResponse](t, e.get("/api/datasets/history/facets"))
	assert.Empty(t, facets.Columns)
	assert.Equal(t, templates.NoFacetsMessage, facets.Placeholder)
}

func TestExport(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, dataset.KindMain, staffCSV)

	rec := e.get("/api/datasets/main/export?f[Kota]=Bergen")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="main.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Nama,Unit,Kota\nBo,Ops,Bergen\nCy,HR,Bergen\n", rec.Body.String())
}

func TestClearDataset(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, dataset.KindMain, staffCSV)

	rec := e.do(httptest.NewRequest(http.MethodDelete, "/api/datasets/main", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[core.DatasetStatus](t, e.get("/api/datasets/main"))
	assert.False(t, st.Exists)
}

func TestViewPage(t *testing.T) {
	e := newTestEnv(t)

	var b strings.Builder
	b.WriteString("Nama;Unit\n")
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&b, "p%d;U%d\n", i, i%3)
	}
	e.seed(t, dataset.KindMain, b.String())

	rec := e.get("/view/main")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Showing 200 of 250 rows")
	assert.Contains(t, body, `name="f[Unit]" value="U0"`)

	rec = e.get("/view/main?apply=1&q=p1&f[Unit]=U1")
	body = rec.Body.String()
	assert.Contains(t, body, `value="U1" checked`)
	assert.NotContains(t, body, "Showing", "a short result has no cap notice")

	rec = e.get("/view/history")
	assert.Contains(t, rec.Body.String(), templates.NoFacetsMessage)

	rec = e.get("/view/archive")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQ001")
}

func TestViewUploadForm(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(multipartFile(t, http.MethodPost, "/view/history/upload", "hist.csv", staffCSV))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upload history succeeded (3 rows)")

	rec = e.do(multipartFile(t, http.MethodPost, "/view/history/upload", "empty.csv", "Nama\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE003")

	rec = e.do(httptest.NewRequest(http.MethodPost, "/view/history/clear", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	c, _ := e.svc.Context(dataset.KindHistory)
	assert.False(t, c.Exists())
}

func TestDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, dataset.KindMain, staffCSV)

	body := e.get("/").Body.String()
	assert.Contains(t, body, "3 rows, 3 columns, 2 filters")
	assert.Contains(t, body, "No data uploaded.")
}

func TestAPIKeyRequired(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	assert.Equal(t, http.StatusUnauthorized, e.get("/api/datasets/main").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/main", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, e.do(req).Code)

	assert.Equal(t, http.StatusOK, e.get("/").Code, "pages are not behind the API key")
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	assert.Equal(t, http.StatusOK, e.get("/healthz").Code)
	assert.Equal(t, http.StatusOK, e.get("/healthz").Code)
	rec := e.get("/api/datasets/main")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)
}

func TestAuditLogAPI(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, dataset.KindMain, staffCSV)
	e.seed(t, dataset.KindHistory, staffCSV)
	rec := e.do(httptest.NewRequest(http.MethodDelete, "/api/datasets/history", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.get("/api/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[AuditLogResponse](t, rec)
	require.Equal(t, 3, all.Count)
	assert.Equal(t, core.ActionDatasetClear, all.Entries[0].Action)

	rec = e.get("/api/audit?kind=main")
	main := decode[AuditLogResponse](t, rec)
	require.Equal(t, 1, main.Count)
	assert.Equal(t, core.ActionUpload, main.Entries[0].Action)
	assert.Equal(t, 3, main.Entries[0].Rows)

	rec = e.get("/api/audit?action=upload&limit=1")
	assert.Equal(t, 1, decode[AuditLogResponse](t, rec).Count)

	rec = e.get("/api/audit?from=2999-01-01")
	assert.Equal(t, 0, decode[AuditLogResponse](t, rec).Count)

	assert.Equal(t, http.StatusNotFound, e.get("/api/audit?kind=archive").Code)
	assert.Equal(t, http.StatusBadRequest, e.get("/api/audit?from=yesterday").Code)

	rec = e.get("/api/audit/export?kind=history")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Timestamp,Action"))
	assert.Contains(t, lines[1], "dataset_clear")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteRowsCSV(t *testing.T) {
	rows := []dataset.Row{{"a": "1", "b": "x,y"}, {"a": "2"}}

	var buf bytes.Buffer
	require.NoError(t, writeRowsCSV(&buf, []string{"a", "b"}, rows))
	assert.Equal(t, "a,b\n1,\"x,y\"\n2,\n", buf.String())

	// csv.Writer buffers, so the failure only surfaces at the final flush.
	err := writeRowsCSV(failingWriter{}, []string{"a", "b"}, rows)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
