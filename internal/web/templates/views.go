// Package templates renders the viewer's HTML pages as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/parse"
	"github.com/JonMunkholm/tabview/internal/query"
)

// KindCard is one dataset on the dashboard.
type KindCard struct {
	Label  string
	Status core.DatasetStatus
}

// DashboardData feeds the dashboard page.
type DashboardData struct {
	Cards   []KindCard
	Limiter core.UploadLimiterStatus
	Recent  []core.AuditEntry
}

// TableViewData feeds the table page of one kind.
type TableViewData struct {
	Kind      dataset.Kind
	Label     string
	Status    core.DatasetStatus
	Headers   []string
	Page      query.Page
	Search    string
	Facets    facet.Index
	Selection facet.Selection
	Flash     string
	FlashOK   bool
}

// NoFacetsMessage replaces the facet panel when a dataset offers no filters.
const NoFacetsMessage = "Upload a CSV/XLSX file to see filters."

const styles = `body{font-family:system-ui,sans-serif;margin:0;color:#1f2933}
header{background:#1f2933;color:#fff;padding:.75rem 1.5rem}header a{color:#fff;margin-right:1rem}
main{padding:1.5rem}.cards{display:flex;gap:1rem}.card{border:1px solid #d2d6dc;border-radius:6px;padding:1rem;min-width:16rem}
.layout{display:flex;gap:1.5rem}aside{min-width:14rem}fieldset{border:1px solid #d2d6dc;margin-bottom:.75rem}
table{border-collapse:collapse;font-size:.875rem}th,td{border:1px solid #d2d6dc;padding:.25rem .5rem;text-align:left}
.flash{padding:.5rem 1rem;border-radius:4px;margin-bottom:1rem}.ok{background:#e3f9e5}.err{background:#ffe3e3}
.muted{color:#7b8794}`

// htmlWriter remembers the first write error so view code stays linear.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

// Layout wraps body in the page chrome.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		h.text(title)
		h.raw(` · tabview</title><style>`)
		h.raw(styles)
		h.raw(`</style></head><body><header><a href="/">Dashboard</a>`)
		for _, k := range dataset.Kinds {
			h.rawf(`<a href="/view/%s">%s</a>`, k, templ.EscapeString(k.Label()))
		}
		h.raw(`</header><main>`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// Dashboard lists both kinds with their status.
func Dashboard(data DashboardData) templ.Component {
	return Layout("Dashboard", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<h1>Datasets</h1><div class="cards">`)
		for _, card := range data.Cards {
			st := card.Status
			h.rawf(`<div class="card"><h2><a href="/view/%s">`, st.Kind)
			h.text(card.Label)
			h.raw(`</a></h2>`)
			if st.Exists {
				h.rawf(`<p>%d rows, %d columns, %d filters</p>`, st.Rows, st.Columns, st.Facets)
				h.raw(`<p class="muted">Saved `)
				h.text(savedAt(st.SavedAt))
				h.raw(`</p>`)
			} else {
				h.raw(`<p class="muted">No data uploaded.</p>`)
			}
			h.render(ctx, uploadForm(st.Kind))
			h.raw(`</div>`)
		}
		h.rawf(`</div><p class="muted">Uploads running: %d of %d</p>`, data.Limiter.Active, data.Limiter.MaxConcurrent)
		h.render(ctx, recentActivity(data.Recent))
		return h.err
	}))
}

// TableView shows one kind: upload form, facets, search and the table.
func TableView(data TableViewData) templ.Component {
	return Layout(data.Label, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<h1>`)
		h.text(data.Label)
		h.raw(`</h1>`)
		if data.Flash != "" {
			class := "err"
			if data.FlashOK {
				class = "ok"
			}
			h.rawf(`<div class="flash %s">`, class)
			h.text(data.Flash)
			h.raw(`</div>`)
		}
		h.render(ctx, statusLine(data.Status))
		h.render(ctx, uploadForm(data.Kind))

		h.rawf(`<form method="get" action="/view/%s"><input type="hidden" name="apply" value="1">`, data.Kind)
		h.raw(`<div class="layout"><aside>`)
		h.render(ctx, FacetPanel(data.Facets, data.Selection))
		h.rawf(`<p><a href="/view/%s?apply=1&amp;q=%s">Reset filters</a></p>`, data.Kind, url.QueryEscape(data.Search))
		h.raw(`</aside><section><p><input type="search" name="q" placeholder="Search all columns" value="`)
		h.text(data.Search)
		h.raw(`"> <button type="submit">Apply</button></p>`)
		h.render(ctx, RowsTable(data.Headers, data.Page))
		h.raw(`</section></div></form>`)
		return h.err
	}))
}

// FacetPanel renders one checkbox group per facet column, or a hint when
// the dataset offers none.
func FacetPanel(idx facet.Index, sel facet.Selection) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if idx.Empty() {
			h.raw(`<p class="muted">`)
			h.text(NoFacetsMessage)
			h.raw(`</p>`)
			return h.err
		}
		for _, col := range idx.Columns {
			h.raw(`<fieldset><legend>`)
			h.text(col)
			h.raw(`</legend>`)
			name := templ.EscapeString("f[" + col + "]")
			for _, v := range idx.Values[col] {
				checked := ""
				if sel.Checked(col, v) {
					checked = " checked"
				}
				h.rawf(`<label><input type="checkbox" name="%s" value="%s"%s> `, name, templ.EscapeString(v), checked)
				h.text(v)
				h.raw(`</label><br>`)
			}
			h.raw(`</fieldset>`)
		}
		return h.err
	})
}

// RowsTable renders a page of rows and the "showing X of Y" footer.
func RowsTable(headers []string, page query.Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(headers) == 0 {
			h.raw(`<p class="muted">No data uploaded.</p>`)
			return h.err
		}
		h.raw(`<table><thead><tr>`)
		for _, col := range headers {
			h.raw(`<th>`)
			h.text(col)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for _, row := range page.Rows {
			h.raw(`<tr>`)
			for _, col := range headers {
				h.raw(`<td>`)
				h.text(row[col])
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table>`)
		h.raw(`<p class="muted">`)
		h.text(showingText(page))
		h.raw(`</p>`)
		return h.err
	})
}

// ErrorPage is the HTML body of a failed page request.
func ErrorPage(msg core.UserMessage) templ.Component {
	return Layout("Error", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="flash err"><strong>`)
		h.text(msg.Message)
		h.raw(`</strong><br>`)
		h.text(msg.Action)
		h.raw(` <span class="muted">(`)
		h.text(msg.Code)
		h.raw(`)</span></div>`)
		return h.err
	}))
}

func recentActivity(entries []core.AuditEntry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if len(entries) == 0 {
			return nil
		}
		h.raw(`<h2>Recent activity</h2><table><thead><tr><th>Time</th><th>Dataset</th><th>Action</th><th>File</th><th>Rows</th><th>Error</th></tr></thead><tbody>`)
		for _, e := range entries {
			h.raw(`<tr><td>`)
			h.text(e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			h.raw(`</td><td>`)
			h.text(e.Kind.Label())
			h.raw(`</td><td>`)
			h.text(string(e.Action))
			h.raw(`</td><td>`)
			h.text(e.FileName)
			h.rawf(`</td><td>%d</td><td>`, e.Rows)
			h.text(e.ErrorCode)
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}

func statusLine(st core.DatasetStatus) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		if !st.Exists {
			h.raw(`<p class="muted">No data uploaded.</p>`)
			return h.err
		}
		h.rawf(`<p>%d rows, saved `, st.Rows)
		h.text(savedAt(st.SavedAt))
		h.rawf(` <form method="post" action="/view/%s/clear" style="display:inline"><button type="submit">Clear</button></form></p>`, st.Kind)
		return h.err
	})
}

func uploadForm(kind dataset.Kind) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<form method="post" action="/view/%s/upload" enctype="multipart/form-data">`, kind)
		h.rawf(`<input type="file" name="file" accept="%s" required> <button type="submit">Upload</button></form>`,
			templ.EscapeString(strings.Join(parse.Extensions(), ",")))
		return h.err
	})
}

func showingText(page query.Page) string {
	if page.Truncated() {
		return fmt.Sprintf("Showing %d of %d rows", len(page.Rows), page.Total)
	}
	return fmt.Sprintf("%d rows", page.Total)
}

func savedAt(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
