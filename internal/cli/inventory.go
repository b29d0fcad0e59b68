package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deude27/taverto/internal/config"
	"github.com/deude27/taverto/internal/extract"
	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/storage"
)

var (
	inventoryTypeFlag    string
	inventoryOutFlag     string
	inventoryDBFlag      string
	inventoryWorkersFlag int
	inventoryOmitSQLFlag bool
	inventoryWatchFlag   bool
	inventoryQuietFlag   bool
)

// inventoryCmd represents the inventory command
var inventoryCmd = &cobra.Command{
	Use:   "inventory <file|dir>...",
	Short: "Build the inventory of QMF extract files",
	Long: `Inventory segments each extract into its declared objects, masks
sensitive data, and records for every object the objects it runs, the forms
it uses, the tables it reads and saves, and its file exports.

Directories are searched with the extract.patterns and extract.ignore globs
from the configuration. Objects that cannot be inventoried are reported and
skipped; the rest of the extract is still processed.

Examples:
  # Inventory one extract as queries
  taverto inventory queries.txt

  # Inventory a directory of procedures into a database as well
  taverto inventory --type proc --db inventory.db extracts/

  # Re-run whenever an extract changes
  taverto inventory --watch extracts/
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInventory,
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.Flags().StringVarP(&inventoryTypeFlag, "type", "t", "", "Object type of the extract: query, proc or form (default from config)")
	inventoryCmd.Flags().StringVarP(&inventoryOutFlag, "out", "o", "", "Summary JSON path (default from config)")
	inventoryCmd.Flags().StringVar(&inventoryDBFlag, "db", "", "Also write the run to this SQLite database")
	inventoryCmd.Flags().IntVarP(&inventoryWorkersFlag, "workers", "w", 0, "Objects processed concurrently (default from config)")
	inventoryCmd.Flags().BoolVar(&inventoryOmitSQLFlag, "omit-sql", false, "Leave the masked script text out of the outputs")
	inventoryCmd.Flags().BoolVar(&inventoryWatchFlag, "watch", false, "Watch the inputs and re-run on change")
	inventoryCmd.Flags().BoolVarP(&inventoryQuietFlag, "quiet", "q", false, "Suppress progress output")
}

// inventoryOptions are the resolved settings of one inventory invocation.
type inventoryOptions struct {
	Paths      []string
	ObjectType string
	Summary    string
	Database   string
	Workers    int
	OmitSQL    bool
	Quiet      bool
}

func runInventory(cmd *cobra.Command, args []string) error {
	opts := resolveInventoryOptions(cfg, args)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := executeInventory(ctx, cfg, opts, cmd.ErrOrStderr()); err != nil {
		return err
	}
	if !inventoryWatchFlag {
		return nil
	}
	return watchInventory(ctx, cfg, opts, cmd.ErrOrStderr())
}

func resolveInventoryOptions(c *config.Config, args []string) inventoryOptions {
	opts := inventoryOptions{
		Paths:      args,
		ObjectType: c.Extract.ObjectType,
		Summary:    c.Output.Summary,
		Database:   c.Output.Database,
		Workers:    c.Extract.Workers,
		OmitSQL:    c.Output.OmitSQL || inventoryOmitSQLFlag,
		Quiet:      inventoryQuietFlag,
	}
	if inventoryTypeFlag != "" {
		opts.ObjectType = inventoryTypeFlag
	}
	if inventoryOutFlag != "" {
		opts.Summary = inventoryOutFlag
	}
	if inventoryDBFlag != "" {
		opts.Database = inventoryDBFlag
	}
	if inventoryWorkersFlag > 0 {
		opts.Workers = inventoryWorkersFlag
	}
	return opts
}

// newRunner wires the extract pipeline from configuration.
func newRunner(c *config.Config, opts inventoryOptions, progress extract.ProgressReporter) (*extract.Runner, error) {
	profile, err := c.ProfileSwitch()
	if err != nil {
		return nil, err
	}
	logger := logrus.StandardLogger()

	processor := extract.NewProcessor(
		extract.WithMasker(c.Masker()),
		extract.WithBuilder(inventory.NewBuilder(
			inventory.WithProfileSwitch(profile),
			inventory.WithLogger(logger),
		)),
		extract.WithObjectType(opts.ObjectType),
		extract.WithWorkers(opts.Workers),
		extract.WithLogger(logger),
		extract.WithProgress(progress),
	)
	return extract.NewRunner(processor, c.Extract.Patterns, c.Extract.Ignore), nil
}

// executeInventory runs one inventory pass and writes its outputs. It
// returns the run id when a database was written.
func executeInventory(ctx context.Context, c *config.Config, opts inventoryOptions, out io.Writer) (string, error) {
	if _, err := inventory.ParseObjectType(opts.ObjectType); err != nil {
		return "", err
	}

	runner, err := newRunner(c, opts, NewCLIProgressReporter(out, opts.Quiet))
	if err != nil {
		return "", err
	}

	started := time.Now()
	inv, err := runner.Run(ctx, opts.Paths)
	if err != nil {
		return "", err
	}

	for _, f := range inv.Failures {
		logrus.WithFields(logrus.Fields{
			"file":   f.File,
			"object": f.Key,
			"line":   f.Line,
		}).Debug(f.Err)
	}

	if err := inventory.WriteSummaryFile(opts.Summary, inv.Objects, opts.OmitSQL); err != nil {
		return "", err
	}
	logrus.WithField("path", opts.Summary).Info("summary written")

	if opts.Database == "" {
		return "", nil
	}

	runID, err := writeRunToDatabase(opts, inv, started)
	if err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"path": opts.Database,
		"run":  runID,
	}).Info("run written to database")
	return runID, nil
}

func writeRunToDatabase(opts inventoryOptions, inv *extract.Inventory, started time.Time) (string, error) {
	db, err := storage.Open(opts.Database)
	if err != nil {
		return "", err
	}
	defer db.Close()

	failures := make([]storage.FailureRecord, len(inv.Failures))
	for i, f := range inv.Failures {
		failures[i] = storage.FailureRecord{
			FilePath:  f.File,
			ObjectKey: f.Key,
			Line:      f.Line,
			Message:   f.Err.Error(),
		}
	}

	run := &storage.Run{
		ObjectType:   opts.ObjectType,
		StartedAt:    started,
		Files:        inv.Files,
		RecordCount:  inv.Stats.Records,
		DroppedCount: inv.Stats.Dropped,
	}
	return storage.NewInventoryWriter(db).WriteRun(run, inv.Order, inv.Objects, failures, opts.OmitSQL)
}

// watchInventory re-runs the inventory whenever a watched extract changes
// until ctx is cancelled.
func watchInventory(ctx context.Context, c *config.Config, opts inventoryOptions, out io.Writer) error {
	match, err := newInputMatcher(c, opts.Paths)
	if err != nil {
		return err
	}

	w, err := extract.NewWatcher(opts.Paths, match, extract.DefaultDebounce, logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Fprintln(out, "Watching for changes (Ctrl+C to stop)...")
	w.Start(ctx, func(files []string) {
		logrus.WithField("files", len(files)).Info("extracts changed, re-running inventory")
		if _, err := executeInventory(ctx, c, opts, out); err != nil {
			logrus.WithError(err).Error("inventory failed")
		}
	})

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return nil
}

// newInputMatcher reports whether a changed path is one of the inputs:
// an explicit file, or a file a directory input would discover.
func newInputMatcher(c *config.Config, paths []string) (func(string) bool, error) {
	files := make(map[string]bool)
	var dirs []*extract.Discovery

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files[abs] = true
			continue
		}
		d, err := extract.NewDiscovery(abs, c.Extract.Patterns, c.Extract.Ignore)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}

	return func(path string) bool {
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		if files[abs] {
			return true
		}
		for _, d := range dirs {
			if d.Match(abs) {
				return true
			}
		}
		return false
	}, nil
}
