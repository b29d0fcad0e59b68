package extract

// ProgressReporter provides callbacks for reporting inventory progress.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnDiscoveryComplete is called once the extract files are known.
	OnDiscoveryComplete(files int)

	// OnFileStart is called after a file is segmented, before its records
	// are processed.
	OnFileStart(path string, records int)

	// OnRecordProcessed is called after each record, successful or not.
	OnRecordProcessed(key string)

	// OnFileComplete is called when every record of a file is done.
	OnFileComplete(path string, result *Result)

	// OnComplete is called when the whole run finishes.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryComplete(files int)              {}
func (n *NoOpProgressReporter) OnFileStart(path string, records int)       {}
func (n *NoOpProgressReporter) OnRecordProcessed(key string)               {}
func (n *NoOpProgressReporter) OnFileComplete(path string, result *Result) {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)                    {}
