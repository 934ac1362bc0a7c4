package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/query"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

var staff = &dataset.Dataset{
	Headers: []string{"Nama", "Unit"},
	Rows: []dataset.Row{
		{"Nama": "Ann", "Unit": "R&D"},
		{"Nama": "Bo", "Unit": "Ops"},
		{"Nama": "<b>Cy</b>", "Unit": "Ops"},
	},
}

func TestFacetPanel(t *testing.T) {
	idx := facet.Build(staff)
	sel, err := facet.FromPairs(idx, map[string][]string{"Unit": {"Ops"}}, true)
	require.NoError(t, err)

	out := render(t, FacetPanel(idx, sel))
	assert.Contains(t, out, `<legend>Unit</legend>`)
	assert.Contains(t, out, `value="Ops" checked`)
	assert.Contains(t, out, `value="R&amp;D">`)
	assert.NotContains(t, out, "Nama", "name columns get no facet")
}

func TestFacetPanel_Empty(t *testing.T) {
	out := render(t, FacetPanel(facet.Build(&dataset.Dataset{}), nil))
	assert.Contains(t, out, NoFacetsMessage)
}

func TestRowsTable(t *testing.T) {
	out := render(t, RowsTable(staff.Headers, query.Paginate(staff.Rows, 2)))
	assert.Contains(t, out, "<th>Nama</th><th>Unit</th>")
	assert.Contains(t, out, "Showing 2 of 3 rows")
	assert.NotContains(t, out, "<b>Cy</b>")

	out = render(t, RowsTable(staff.Headers, query.Paginate(staff.Rows, 0)))
	assert.Contains(t, out, "&lt;b&gt;Cy&lt;/b&gt;")
	assert.Contains(t, out, "3 rows")

	out = render(t, RowsTable(nil, query.Page{}))
	assert.Contains(t, out, "No data uploaded.")
}

func TestLayout_LinksEveryKind(t *testing.T) {
	out := render(t, Layout("Main <x>", templ.Raw("<p>body</p>")))
	assert.Contains(t, out, "<title>Main &lt;x&gt; · tabview</title>")
	for _, k := range dataset.Kinds {
		assert.Contains(t, out, `href="/view/`+string(k)+`"`)
	}
	assert.Contains(t, out, "<main><p>body</p></main>")
}
