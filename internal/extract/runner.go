package extract

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/deude27/taverto/internal/inventory"
)

// Stats summarizes an inventory run.
type Stats struct {
	Files    int
	Records  int
	Objects  int
	Failures int
	Dropped  int
	Warnings int
	Duration time.Duration
}

// Inventory is the merged result of every extract in a run.
type Inventory struct {
	Files    []string
	Objects  map[string]*inventory.ScriptObject
	Order    []string
	Failures []Failure
	Stats    *Stats
}

// Runner inventories a set of extract files and directories.
type Runner struct {
	processor      *Processor
	patterns       []string
	ignorePatterns []string
}

// NewRunner creates a Runner. Directories given to Run are searched with
// patterns and ignorePatterns; files are always read.
func NewRunner(p *Processor, patterns, ignorePatterns []string) *Runner {
	return &Runner{processor: p, patterns: patterns, ignorePatterns: ignorePatterns}
}

// Files expands paths into the extract files to read, in argument order.
func (r *Runner) Files(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		found := []string{path}
		if info.IsDir() {
			d, err := NewDiscovery(path, r.patterns, r.ignorePatterns)
			if err != nil {
				return nil, err
			}
			if found, err = d.Discover(); err != nil {
				return nil, fmt.Errorf("failed to discover extracts in %s: %w", path, err)
			}
		}

		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, nil
}

// Run reads every extract under paths. Objects from later files replace
// objects with the same key from earlier ones. A file that cannot be read
// aborts the run.
func (r *Runner) Run(ctx context.Context, paths []string) (*Inventory, error) {
	start := time.Now()

	files, err := r.Files(paths)
	if err != nil {
		return nil, err
	}
	r.processor.progress.OnDiscoveryComplete(len(files))

	inv := &Inventory{
		Files:   files,
		Objects: make(map[string]*inventory.ScriptObject),
		Stats:   &Stats{Files: len(files)},
	}
	for _, file := range files {
		res, err := r.processor.ReadExtractFile(ctx, file)
		if err != nil {
			return nil, err
		}
		inv.merge(res)
	}

	inv.Stats.Objects = len(inv.Objects)
	for _, obj := range inv.Objects {
		inv.Stats.Warnings += len(obj.Warnings)
	}
	inv.Stats.Duration = time.Since(start)
	r.processor.progress.OnComplete(inv.Stats)
	return inv, nil
}

func (inv *Inventory) merge(res *Result) {
	for _, key := range res.Order {
		if _, seen := inv.Objects[key]; !seen {
			inv.Order = append(inv.Order, key)
		}
		inv.Objects[key] = res.Objects[key]
	}
	inv.Failures = append(inv.Failures, res.Failures...)
	inv.Stats.Records += res.Records
	inv.Stats.Dropped += res.Dropped
	inv.Stats.Failures += len(res.Failures)
}
