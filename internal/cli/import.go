package cli

import (
	"github.com/spf13/cobra"

	"case-price-watcher/internal/app"
)

var (
	importFile   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the item catalog from an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ImportOptions{
			Path:   importFile,
			DryRun: importDryRun,
		}

		return getApp().Import(cmd.Context(), opts)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to the catalog workbook")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse the workbook without writing to storage")
}
