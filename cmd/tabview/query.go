package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/query"
)

var (
	queryKind   string
	querySearch string
	queryFacets []string
	queryLimit  int
	queryCSV    bool
)

var queryCmd = &cobra.Command{
	Use:   "query --kind <main|history>",
	Short: "Search and filter a dataset",
	Long: `Print the rows of a dataset that contain the search term (in any
column, case-insensitive) and match every facet filter. Values given for
the same column are alternatives.

Examples:
  tabview query --kind main --search ann
  tabview query --kind main --facet Unit=HR --facet Unit=Ops --facet Kota=Oslo
  tabview query --kind history --csv > history.csv`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

var facetsKind string

var facetsCmd = &cobra.Command{
	Use:   "facets --kind <main|history>",
	Short: "List the filter columns of a dataset and their values",
	Args:  cobra.NoArgs,
	RunE:  runFacets,
}

func init() {
	queryCmd.Flags().StringVarP(&queryKind, "kind", "k", "", "dataset kind: main or history (required)")
	queryCmd.Flags().StringVarP(&querySearch, "search", "s", "", "free-text search term")
	queryCmd.Flags().StringArrayVarP(&queryFacets, "facet", "f", nil, "facet filter as column=value (repeatable)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "most rows to print (default: view display cap, -1 for all)")
	queryCmd.Flags().BoolVar(&queryCSV, "csv", false, "write all matching rows as CSV")
	queryCmd.MarkFlagRequired("kind")

	facetsCmd.Flags().StringVarP(&facetsKind, "kind", "k", "", "dataset kind: main or history (required)")
	facetsCmd.MarkFlagRequired("kind")
}

func runQuery(cmd *cobra.Command, _ []string) error {
	pairs, err := parseFacetFlags(queryFacets)
	if err != nil {
		return err
	}

	dc, limit, err := loadContext(cmd, queryKind)
	if err != nil {
		return err
	}
	if !dc.Exists() {
		fmt.Println(mutedStyle.Render("No data uploaded."))
		return nil
	}

	sel, err := facet.FromPairs(dc.Facets, pairs, true)
	if err != nil {
		return err
	}
	rows := dc.Query(querySearch, sel)

	if queryCSV {
		return writeCSV(dc.Headers(), rows)
	}

	if queryLimit != 0 {
		limit = queryLimit
	}
	if limit < 0 {
		limit = len(rows)
	}
	page := query.Paginate(rows, limit)

	out := make([][]string, len(page.Rows))
	for i, row := range page.Rows {
		out[i] = rowValues(dc.Headers(), row)
	}
	fmt.Println(renderTable(dc.Headers(), out))
	if page.Truncated() {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Showing %d of %d rows", len(page.Rows), page.Total)))
	} else {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%d rows", page.Total)))
	}
	return nil
}

func runFacets(cmd *cobra.Command, _ []string) error {
	dc, _, err := loadContext(cmd, facetsKind)
	if err != nil {
		return err
	}
	if dc.Facets.Empty() {
		fmt.Println(mutedStyle.Render("Upload a CSV/XLSX file to see filters."))
		return nil
	}

	rows := make([][]string, 0, len(dc.Facets.Columns))
	for _, col := range dc.Facets.Columns {
		values := dc.Facets.Values[col]
		rows = append(rows, []string{col, fmt.Sprint(len(values)), strings.Join(values, ", ")})
	}
	fmt.Println(titleStyle.Render(dc.Kind.Label()))
	fmt.Println(renderTable([]string{"Column", "Values", "Distinct values"}, rows))
	return nil
}

// loadContext boots a service just long enough to read one kind.
func loadContext(cmd *cobra.Command, kindFlag string) (*core.DatasetContext, int, error) {
	kind, err := dataset.ParseKind(kindFlag)
	if err != nil {
		return nil, 0, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, err
	}

	svc, st, err := openService(cmd.Context(), cfg)
	if err != nil {
		return nil, 0, err
	}
	defer st.Close()

	dc, err := svc.Context(kind)
	return dc, cfg.View.DisplayCap, err
}

// parseFacetFlags turns column=value flags into selection pairs. Only the
// first '=' separates, so values may contain it.
func parseFacetFlags(flags []string) (map[string][]string, error) {
	pairs := make(map[string][]string)
	for _, f := range flags {
		col, val, ok := strings.Cut(f, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --facet %q: want column=value", f)
		}
		pairs[col] = append(pairs[col], val)
	}
	return pairs, nil
}

func rowValues(headers []string, row dataset.Row) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = row[h]
	}
	return out
}

func writeCSV(headers []string, rows []dataset.Row) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(rowValues(headers, row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
