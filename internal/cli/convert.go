package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/storage"
	"github.com/deude27/taverto/internal/transform"
)

var (
	convertSummaryFlag string
	convertOutFlag     string
	convertDBFlag      string
	convertRunFlag     string
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert inventoried DB2 text to the target SQL dialect",
	Long: `Convert rewrites the masked text of every inventoried object with the
built-in DB2 rewrite rules and stores the result next to it.

Without --db the summary JSON is read and written back (or to --out). With
--db the conversions are written into the given run (default latest).
Objects whose text was omitted are skipped.

Examples:
  taverto convert
  taverto convert --summary summary.json --out converted.json
  taverto convert --db inventory.db
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := convertOptions{
			Summary:   cfg.Output.Summary,
			Out:       convertOutFlag,
			DB:        convertDBFlag,
			Run:       convertRunFlag,
			CacheSize: cfg.Transform.CacheSize,
		}
		if convertSummaryFlag != "" {
			opts.Summary = convertSummaryFlag
		}
		return executeConvert(cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertSummaryFlag, "summary", "s", "", "Summary JSON to convert (default from config)")
	convertCmd.Flags().StringVarP(&convertOutFlag, "out", "o", "", "Write the converted summary here instead of in place")
	convertCmd.Flags().StringVar(&convertDBFlag, "db", "", "Convert a run stored in this database")
	convertCmd.Flags().StringVar(&convertRunFlag, "run", "", "Run id to convert (default latest, requires --db)")
}

type convertOptions struct {
	Summary   string
	Out       string
	DB        string
	Run       string
	CacheSize int
}

// convertStats counts the outcome of a conversion pass.
type convertStats struct {
	Converted int
	Skipped   int
	Failed    int
	CacheHits int64
	// Distinct is the number of distinct texts held by the cache.
	Distinct int
}

func executeConvert(out io.Writer, opts convertOptions) error {
	rules := transform.NewRuleTransformer()
	t, err := transform.NewCachedTransformer(rules, opts.CacheSize)
	if err != nil {
		return err
	}

	var stats convertStats
	if opts.DB != "" {
		stats, err = convertRun(t, opts)
	} else {
		stats, err = convertSummaryFile(t, opts)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, successFmt("✓ Converted %s objects", formatNumber(stats.Converted)))
	if stats.Skipped > 0 {
		fmt.Fprintln(out, warningFmt("  Skipped:    %s (no script text)", formatNumber(stats.Skipped)))
	}
	if stats.Failed > 0 {
		fmt.Fprintln(out, failureFmt("  Failed:     %s", formatNumber(stats.Failed)))
	}
	fmt.Fprintf(out, "  Distinct:   %s texts\n", formatNumber(stats.Distinct))
	fmt.Fprintf(out, "  Cache hits: %s\n", formatNumber(int(stats.CacheHits)))
	fmt.Fprintf(out, "  Rules:      %s\n", strings.Join(rules.Rules(), ", "))
	return nil
}

func convertSummaryFile(t *transform.CachedTransformer, opts convertOptions) (convertStats, error) {
	objects, err := inventory.ReadSummaryFile(opts.Summary)
	if err != nil {
		return convertStats{}, err
	}

	stats := convertObjects(t, objects)

	dest := opts.Out
	if dest == "" {
		dest = opts.Summary
	}
	if err := inventory.WriteSummaryFile(dest, objects, false); err != nil {
		return convertStats{}, err
	}
	return stats, nil
}

func convertRun(t *transform.CachedTransformer, opts convertOptions) (convertStats, error) {
	db, err := storage.Open(opts.DB)
	if err != nil {
		return convertStats{}, err
	}
	defer db.Close()

	runID, err := resolveRunID(storage.NewInventoryReader(db), opts.Run)
	if err != nil {
		return convertStats{}, err
	}
	objects, _, err := storage.NewInventoryReader(db).LoadObjects(runID)
	if err != nil {
		return convertStats{}, err
	}

	stats := convertObjects(t, objects)
	if err := storage.NewInventoryWriter(db).WriteConversions(runID, objects); err != nil {
		return convertStats{}, err
	}
	return stats, nil
}

// convertObjects converts every object with text, in key order. A failed
// conversion is logged and leaves the object unconverted.
func convertObjects(t *transform.CachedTransformer, objects map[string]*inventory.ScriptObject) convertStats {
	keys := make([]string, 0, len(objects))
	for key := range objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var stats convertStats
	for _, key := range keys {
		obj := objects[key]
		if obj.SQL == "" {
			stats.Skipped++
			continue
		}
		if err := obj.Convert(t); err != nil {
			logrus.WithField("object", key).WithError(err).Warn("conversion failed")
			stats.Failed++
			continue
		}
		stats.Converted++
	}
	stats.CacheHits = t.Hits()
	stats.Distinct = t.Len()
	return stats
}
