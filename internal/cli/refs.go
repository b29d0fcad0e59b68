package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/storage"
)

var (
	refsDBFlag     string
	refsRunFlag    string
	refsFormatFlag string
)

// refsCmd represents the refs command
var refsCmd = &cobra.Command{
	Use:   "refs <DB.NAME>",
	Short: "Show which objects reference a name",
	Long: `Refs looks up every inventoried object that runs, uses as a form, reads,
saves to, or fails to classify the given fully qualified name.

Examples:
  taverto refs TA01.SALES --db inventory.db
  taverto refs TA07.MONTHLY_Q --db inventory.db --run <run-id> --format json
`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(refsFormatFlag)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := refsDBFlag
		if dbPath == "" {
			dbPath = cfg.Output.Database
		}
		return executeRefs(cmd.OutOrStdout(), dbPath, refsRunFlag, args[0], refsFormatFlag)
	},
}

func init() {
	rootCmd.AddCommand(refsCmd)
	refsCmd.Flags().StringVar(&refsDBFlag, "db", "", "Inventory database (default from config)")
	refsCmd.Flags().StringVar(&refsRunFlag, "run", "", "Run id to search (default latest)")
	refsCmd.Flags().StringVarP(&refsFormatFlag, "format", "f", TableFormatTable, "Output format: table, compact, csv, json or yaml")
}

func executeRefs(out io.Writer, dbPath, runID, name, format string) error {
	if dbPath == "" {
		return fmt.Errorf("no database given: use --db or set output.database")
	}
	if db, _ := inventory.SplitQualified(name); db == "" {
		return fmt.Errorf("name %q must be qualified as DB.NAME", name)
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	reader := storage.NewInventoryReader(db)

	runID, err = resolveRunID(reader, runID)
	if err != nil {
		return err
	}

	refs, err := reader.FindReferences(runID, name)
	if err != nil {
		return err
	}

	data := make([][]string, 0, len(refs))
	for _, r := range refs {
		data = append(data, []string{r.ObjectKey, r.Kind})
	}
	return renderTable(out, format, []string{"OBJECT", "KIND"}, data, refs)
}
