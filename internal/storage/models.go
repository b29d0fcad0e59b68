package storage

import "time"

// Ref kinds stored in object_refs.
const (
	RefUsed    = "used"
	RefForm    = "form"
	RefSource  = "source"
	RefTarget  = "target"
	RefUnknown = "unknown"
)

// timeLayout stores timestamps in UTC with fixed-width nanoseconds so the
// text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run describes one inventory run.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	ObjectType string    `json:"objectType" yaml:"object_type"`
	StartedAt  time.Time `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finished_at"`
	Files      []string  `json:"files,omitempty" yaml:"files,omitempty"`

	RecordCount  int `json:"records" yaml:"records"`
	ObjectCount  int `json:"objects" yaml:"objects"`
	FailureCount int `json:"failures" yaml:"failures"`
	DroppedCount int `json:"dropped" yaml:"dropped"`
}

// FailureRecord is a record that could not be inventoried during a run.
type FailureRecord struct {
	FilePath  string `json:"file" yaml:"file"`
	ObjectKey string `json:"object" yaml:"object"`
	Line      int    `json:"line" yaml:"line"`
	Message   string `json:"error" yaml:"error"`
}

// Reference is one object that points at a given name.
type Reference struct {
	ObjectKey string `json:"object" yaml:"object"`
	Kind      string `json:"kind" yaml:"kind"`
}
