package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deude27/taverto/internal/storage"
)

var (
	pruneDBFlag    string
	pruneKeepFlag  int
	pruneQuietFlag bool
)

// pruneCmd represents the prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old inventory runs from the database",
	Long: `Prune removes all but the most recent runs from an inventory database,
together with their objects, references and failures.

Examples:
  # Keep only the latest run
  taverto prune --db inventory.db

  # Keep the five most recent runs
  taverto prune --db inventory.db --keep 5
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := pruneDBFlag
		if dbPath == "" {
			dbPath = cfg.Output.Database
		}
		out := cmd.OutOrStdout()
		if pruneQuietFlag {
			out = io.Discard
		}
		_, err := executePrune(out, dbPath, pruneKeepFlag)
		return err
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().StringVar(&pruneDBFlag, "db", "", "Inventory database (default from config)")
	pruneCmd.Flags().IntVarP(&pruneKeepFlag, "keep", "k", 1, "Number of most recent runs to keep")
	pruneCmd.Flags().BoolVarP(&pruneQuietFlag, "quiet", "q", false, "Suppress output messages")
}

// executePrune deletes every run older than the keep most recent ones and
// returns how many were deleted.
func executePrune(out io.Writer, dbPath string, keep int) (int, error) {
	if dbPath == "" {
		return 0, fmt.Errorf("no database given: use --db or set output.database")
	}
	if keep < 1 {
		return 0, fmt.Errorf("invalid --keep %d: must be at least 1", keep)
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	runs, err := storage.NewInventoryReader(db).ListRuns()
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		fmt.Fprintln(out, "Nothing to prune")
		return 0, nil
	}

	writer := storage.NewInventoryWriter(db)
	for _, run := range runs[keep:] {
		if err := writer.DeleteRun(run.ID); err != nil {
			return 0, err
		}
	}

	deleted := len(runs) - keep
	fmt.Fprintln(out, successFmt("✓ Deleted %s runs, kept %s", formatNumber(deleted), formatNumber(keep)))
	return deleted, nil
}
