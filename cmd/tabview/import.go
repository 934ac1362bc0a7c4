package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
)

var (
	importKind  string
	importQuiet bool
)

var importCmd = &cobra.Command{
	Use:   "import --kind <main|history> <file>",
	Short: "Replace a dataset with a CSV or XLSX file",
	Long: `Parse a file and make it the active dataset of one kind. The previous
dataset stays in place if the file cannot be parsed or saved.

Examples:
  tabview import --kind main staff.csv
  tabview import --kind history export.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importKind, "kind", "k", "", "dataset kind: main or history (required)")
	importCmd.Flags().BoolVarP(&importQuiet, "quiet", "q", false, "no progress bar")
	importCmd.MarkFlagRequired("kind")
}

func runImport(cmd *cobra.Command, args []string) error {
	kind, err := dataset.ParseKind(importKind)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > cfg.Upload.MaxFileSize {
		return fmt.Errorf("%s: %w", path, core.ErrFileTooLarge)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	ctx := cmd.Context()
	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := svc.StartUpload(core.ContextWithUserAgent(ctx, "tabview-cli"), kind, filepath.Base(path), data)
	if err != nil {
		return err
	}

	progress, err := svc.SubscribeProgress(id)
	if err != nil {
		return err
	}
	bar := newProgressBar(filepath.Base(path), importQuiet)
	for p := range progress {
		bar.Describe(fmt.Sprintf("%-10s %s", p.Phase, filepath.Base(path)))
		bar.Set(p.Percent())
	}
	bar.Finish()

	res, err := svc.GetUploadResult(ctx, id)
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return res.Err
	}

	fmt.Println(successStyle.Render("✓ ") + res.Message())
	fmt.Printf("  %s %d   %s %d   %s %s\n",
		mutedStyle.Render("rows"), res.Rows,
		mutedStyle.Render("columns"), res.Columns,
		mutedStyle.Render("took"), res.Duration.Round(time.Millisecond))
	return nil
}

func newProgressBar(name string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(100)
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
		}),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
