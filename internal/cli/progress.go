package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/deude27/taverto/internal/extract"
)

var (
	successFmt = color.New(color.FgGreen, color.Bold).SprintfFunc()
	warningFmt = color.New(color.FgYellow).SprintfFunc()
	failureFmt = color.New(color.FgRed).SprintfFunc()
)

// CLIProgressReporter implements extract.ProgressReporter with one
// progress bar per extract file.
type CLIProgressReporter struct {
	quiet   bool
	out     io.Writer
	fileBar *progressbar.ProgressBar
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
		out:   out,
	}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "Reading %s extract files\n", formatNumber(files))
}

func (c *CLIProgressReporter) OnFileStart(path string, records int) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
	}

	c.fileBar = progressbar.NewOptions(records,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(filepath.Base(path)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("objects/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnRecordProcessed(key string) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnFileComplete(path string, result *extract.Result) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	if n := len(result.Failures); n > 0 {
		fmt.Fprintln(c.out, failureFmt("  %s: %s objects skipped", filepath.Base(path), formatNumber(n)))
	}
	if result.Dropped > 0 {
		fmt.Fprintln(c.out, warningFmt("  %s: %s records without a declaration", filepath.Base(path), formatNumber(result.Dropped)))
	}
}

func (c *CLIProgressReporter) OnComplete(stats *extract.Stats) {
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, successFmt("✓ Inventory complete: %s objects in %.1fs",
		formatNumber(stats.Objects), stats.Duration.Seconds()))
	fmt.Fprintf(c.out, "  Files:    %s\n", formatNumber(stats.Files))
	fmt.Fprintf(c.out, "  Records:  %s\n", formatNumber(stats.Records))
	if stats.Failures > 0 {
		fmt.Fprintln(c.out, failureFmt("  Failed:   %s", formatNumber(stats.Failures)))
	}
	if stats.Warnings > 0 {
		fmt.Fprintln(c.out, warningFmt("  Warnings: %s", formatNumber(stats.Warnings)))
	}
}

// formatNumber renders n with thousands separators.
func formatNumber(n int) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	sign := ""
	if str[0] == '-' {
		sign, str = "-", str[1:]
	}
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return sign + result
}
