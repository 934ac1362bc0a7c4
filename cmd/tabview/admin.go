package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

var clearKind string

var clearCmd = &cobra.Command{
	Use:   "clear --kind <main|history>",
	Short: "Remove a stored dataset",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what each dataset slot holds",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	clearCmd.Flags().StringVarP(&clearKind, "kind", "k", "", "dataset kind: main or history (required)")
	clearCmd.MarkFlagRequired("kind")
}

func runClear(cmd *cobra.Command, _ []string) error {
	kind, err := dataset.ParseKind(clearKind)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, st, err := openService(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.Clear(cmd.Context(), kind); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ ") + kind.Label() + " cleared")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, st, err := openService(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows := make([][]string, 0, len(dataset.Kinds))
	for _, s := range svc.Status() {
		if !s.Exists {
			rows = append(rows, []string{s.Kind.Label(), "empty", "", "", ""})
			continue
		}
		saved := "unknown"
		if s.SavedAt != nil {
			saved = s.SavedAt.Local().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{s.Kind.Label(), fmt.Sprint(s.Rows), fmt.Sprint(s.Columns), fmt.Sprint(s.Facets), saved})
	}
	fmt.Println(titleStyle.Render("Store: ") + cfg.Store.Backend)
	fmt.Println(renderTable([]string{"Dataset", "Rows", "Columns", "Filters", "Saved"}, rows))
	return nil
}
