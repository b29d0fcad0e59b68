package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/storage"
)

var (
	listSummaryFlag string
	listDBFlag      string
	listRunFlag     string
	listFormatFlag  string
	listFailedFlag  bool
	listRunsFlag    bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventoried objects",
	Long: `List the objects of an inventory, read from a summary JSON file or from
a database written by 'taverto inventory --db'.

With --db the latest run is shown unless --run names another one. --runs
lists the runs stored in the database and --failed the records that could
not be inventoried.

Examples:
  taverto list
  taverto list --summary out/summary.json --format csv,header
  taverto list --db inventory.db --failed
  taverto list --db inventory.db --runs
`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(listFormatFlag)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := listOptions{
			Summary: cfg.Output.Summary,
			DB:      listDBFlag,
			Run:     listRunFlag,
			Format:  listFormatFlag,
			Failed:  listFailedFlag,
			Runs:    listRunsFlag,
		}
		if listSummaryFlag != "" {
			opts.Summary = listSummaryFlag
		}
		return executeList(cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listSummaryFlag, "summary", "s", "", "Summary JSON to read (default from config)")
	listCmd.Flags().StringVar(&listDBFlag, "db", "", "Read from this inventory database instead of a summary")
	listCmd.Flags().StringVar(&listRunFlag, "run", "", "Run id to read (default latest, requires --db)")
	listCmd.Flags().StringVarP(&listFormatFlag, "format", "f", TableFormatTable, "Output format: table, compact, csv, json or yaml")
	listCmd.Flags().BoolVar(&listFailedFlag, "failed", false, "List failed records instead of objects (requires --db)")
	listCmd.Flags().BoolVar(&listRunsFlag, "runs", false, "List stored runs (requires --db)")
}

type listOptions struct {
	Summary string
	DB      string
	Run     string
	Format  string
	Failed  bool
	Runs    bool
}

var objectHeader = []string{
	"NAME", "DB", "TYPE", "OBJECTS USED", "FORMS", "SOURCE TABLES", "TARGET TABLES", "EXPORT", "SAVE", "LAST USED",
}

func executeList(out io.Writer, opts listOptions) error {
	if opts.DB == "" {
		if opts.Failed || opts.Runs || opts.Run != "" {
			return fmt.Errorf("--failed, --runs and --run require --db")
		}
		return listSummaryFile(out, opts)
	}

	db, err := storage.Open(opts.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	reader := storage.NewInventoryReader(db)

	if opts.Runs {
		return listRuns(out, reader, opts.Format)
	}

	runID, err := resolveRunID(reader, opts.Run)
	if err != nil {
		return err
	}
	if opts.Failed {
		return listFailures(out, reader, runID, opts.Format)
	}

	summaries, order, err := reader.LoadSummaries(runID)
	if err != nil {
		return err
	}
	return renderSummaries(out, opts.Format, summaries, order)
}

// resolveRunID returns runID when set, or the latest run.
func resolveRunID(reader *storage.InventoryReader, runID string) (string, error) {
	var (
		run *storage.Run
		err error
	)
	if runID == "" {
		run, err = reader.LatestRun()
	} else {
		run, err = reader.GetRun(runID)
	}
	if err != nil {
		return "", err
	}
	if run == nil {
		if runID == "" {
			return "", fmt.Errorf("database has no inventory runs")
		}
		return "", fmt.Errorf("run %s not found", runID)
	}
	return run.ID, nil
}

func listSummaryFile(out io.Writer, opts listOptions) error {
	f, err := os.Open(opts.Summary)
	if err != nil {
		return fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()

	summaries, err := inventory.DecodeSummaries(f)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Summary, err)
	}

	order := make([]string, 0, len(summaries))
	for key := range summaries {
		order = append(order, key)
	}
	sort.Strings(order)
	return renderSummaries(out, opts.Format, summaries, order)
}

func renderSummaries(out io.Writer, format string, summaries map[string]inventory.Summary, order []string) error {
	data := make([][]string, 0, len(order))
	raw := make([]inventory.Summary, 0, len(order))
	for _, key := range order {
		s := summaries[key]
		raw = append(raw, s)
		data = append(data, []string{
			key,
			s.DBName,
			string(s.Type),
			joinSet(s.ObjectsUsed),
			joinSet(s.Forms),
			joinSet(s.SourceTables),
			joinSet(s.TargetTables),
			yesNo(s.FileExport),
			yesNo(s.SaveAsTable),
			s.LastUsedDate,
		})
	}
	return renderTable(out, format, objectHeader, data, raw)
}

func listRuns(out io.Writer, reader *storage.InventoryReader, format string) error {
	runs, err := reader.ListRuns()
	if err != nil {
		return err
	}

	header := []string{"RUN", "TYPE", "FINISHED", "RECORDS", "OBJECTS", "FAILED", "DROPPED"}
	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.ObjectType,
			r.FinishedAt.Local().Format(time.DateTime),
			strconv.Itoa(r.RecordCount),
			strconv.Itoa(r.ObjectCount),
			strconv.Itoa(r.FailureCount),
			strconv.Itoa(r.DroppedCount),
		})
	}
	return renderTable(out, format, header, data, runs)
}

func listFailures(out io.Writer, reader *storage.InventoryReader, runID, format string) error {
	failures, err := reader.LoadFailures(runID)
	if err != nil {
		return err
	}

	header := []string{"FILE", "OBJECT", "LINE", "ERROR"}
	data := make([][]string, 0, len(failures))
	for _, f := range failures {
		data = append(data, []string{f.FilePath, f.ObjectKey, strconv.Itoa(f.Line), f.Message})
	}
	return renderTable(out, format, header, data, failures)
}
