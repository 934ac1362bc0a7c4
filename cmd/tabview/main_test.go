package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tabview/internal/config"
)

func TestParseFacetFlags(t *testing.T) {
	pairs, err := parseFacetFlags([]string{"Unit=HR", "Unit=Ops", "Formula=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"Unit":    {"HR", "Ops"},
		"Formula": {"a=b"},
	}, pairs)

	_, err = parseFacetFlags([]string{"Unit"})
	assert.Error(t, err)
	_, err = parseFacetFlags([]string{"=HR"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Nama", "Unit"}, [][]string{{"Ann", "HR"}})
	for _, want := range []string{"Nama", "Unit", "Ann", "HR"} {
		assert.True(t, strings.Contains(out, want), "missing %q in\n%s", want, out)
	}
}

func TestServiceOptions(t *testing.T) {
	cfg := config.Defaults()
	opts := serviceOptions(cfg)
	assert.Equal(t, "Sheet1", opts.Parse.SheetName)
	assert.Equal(t, "dbase", opts.Parse.SheetMarker)
	assert.True(t, opts.Parse.ConvertDateSerials)
	assert.Equal(t, cfg.Upload.MaxConcurrent, opts.MaxConcurrent)
	assert.Equal(t, cfg.Upload.ResultTTL, opts.ResultTTL)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "import", "query", "facets", "clear", "status"} {
		assert.True(t, names[want], want)
	}
}
