package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/masking"
	"github.com/deude27/taverto/internal/recognizer"
)

// Failure is a record that could not be inventoried. The rest of the
// extract is unaffected.
type Failure struct {
	File string
	Key  string
	Line int
	Err  error
}

func (f Failure) Error() string {
	if f.File != "" {
		return fmt.Sprintf("%s:%d: %s: %v", f.File, f.Line, f.Key, f.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", f.Line, f.Key, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Result is the inventory of one extract.
type Result struct {
	// Objects maps "<db>.<name>" to its parsed object. When a key is
	// declared twice, the later successful record wins.
	Objects map[string]*inventory.ScriptObject
	// Order lists the keys of Objects by first appearance.
	Order    []string
	Failures []Failure
	Records  int
	Dropped  int
}

// Processor runs the mask, recognize and build pipeline over segmented
// records.
type Processor struct {
	masker     *masking.Masker
	recognizer recognizer.Recognizer
	builder    *inventory.Builder
	objectType string
	workers    int
	logger     logrus.FieldLogger
	progress   ProgressReporter
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

func WithMasker(m *masking.Masker) ProcessorOption {
	return func(p *Processor) { p.masker = m }
}

func WithRecognizer(r recognizer.Recognizer) ProcessorOption {
	return func(p *Processor) { p.recognizer = r }
}

func WithBuilder(b *inventory.Builder) ProcessorOption {
	return func(p *Processor) { p.builder = b }
}

// WithObjectType sets the type given to every object of the extract.
func WithObjectType(t string) ProcessorOption {
	return func(p *Processor) { p.objectType = t }
}

// WithWorkers bounds the number of records processed concurrently.
// Values below 1 mean sequential.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) { p.workers = n }
}

func WithLogger(l logrus.FieldLogger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

func WithProgress(r ProgressReporter) ProcessorOption {
	return func(p *Processor) { p.progress = r }
}

// NewProcessor creates a Processor with default masking, recognition and
// profile switching for query objects.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		masker:     masking.DefaultMasker(),
		recognizer: recognizer.New(),
		objectType: string(inventory.ObjectTypeQuery),
		workers:    1,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.builder == nil {
		p.builder = inventory.NewBuilder(inventory.WithLogger(p.logger))
	}
	if p.progress == nil {
		p.progress = &NoOpProgressReporter{}
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// ReadExtractFile segments and processes the extract at path. It fails
// only when the file cannot be opened or read; per-record problems are
// reported in Result.Failures.
func (p *Processor) ReadExtractFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer f.Close()

	res, err := p.readExtract(ctx, path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// ReadExtract segments and processes an extract read from r.
func (p *Processor) ReadExtract(ctx context.Context, r io.Reader) (*Result, error) {
	return p.readExtract(ctx, "", r)
}

func (p *Processor) readExtract(ctx context.Context, path string, r io.Reader) (*Result, error) {
	seg, err := Segment(r)
	if err != nil {
		return nil, err
	}
	if seg.Dropped > 0 {
		p.logger.WithFields(logrus.Fields{
			"file":    path,
			"dropped": seg.Dropped,
		}).Warn("records without a QUERY declaration were dropped")
	}

	p.progress.OnFileStart(path, len(seg.Records))
	res, err := p.Process(ctx, seg.Records)
	if err != nil {
		return nil, err
	}
	res.Dropped = seg.Dropped
	for i := range res.Failures {
		res.Failures[i].File = path
	}
	p.progress.OnFileComplete(path, res)
	return res, nil
}

type outcome struct {
	obj *inventory.ScriptObject
	err error
}

// Process builds one ScriptObject per record. Records are independent and
// may be processed concurrently; results are merged in document order so
// duplicate keys resolve the same way as a sequential pass.
func (p *Processor) Process(ctx context.Context, records []Record) (*Result, error) {
	outcomes := make([]outcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var progressMu sync.Mutex
	for i := range records {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			obj, err := p.processRecord(records[i])
			outcomes[i] = outcome{obj: obj, err: err}

			progressMu.Lock()
			p.progress.OnRecordProcessed(records[i].Key)
			progressMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Objects: make(map[string]*inventory.ScriptObject, len(records)),
		Records: len(records),
	}
	for i, rec := range records {
		out := outcomes[i]
		if out.err != nil {
			res.Failures = append(res.Failures, Failure{Key: rec.Key, Line: rec.Line, Err: out.err})
			p.logFailure(rec, out.err)
			continue
		}
		if _, seen := res.Objects[rec.Key]; !seen {
			res.Order = append(res.Order, rec.Key)
		} else {
			p.logger.WithField("object", rec.Key).Debug("duplicate declaration replaces earlier record")
		}
		res.Objects[rec.Key] = out.obj
	}
	return res, nil
}

func (p *Processor) processRecord(rec Record) (*inventory.ScriptObject, error) {
	db, name := inventory.SplitQualified(rec.Key)
	obj, err := inventory.NewScriptObject(inventory.Options{
		Name:         name,
		DBName:       db,
		SQL:          rec.Text,
		Type:         p.objectType,
		LastUsedDate: rec.LastUsedDate,
	})
	if err != nil {
		return nil, err
	}
	if err := obj.Parse(p.masker, p.recognizer, p.builder); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *Processor) logFailure(rec Record, err error) {
	entry := p.logger.WithFields(logrus.Fields{
		"object": rec.Key,
		"line":   rec.Line,
	})
	var malformed *inventory.MalformedRecordError
	if errors.As(err, &malformed) {
		entry.WithField("action", malformed.Action).Warn("output action before any RUN, object skipped")
		return
	}
	entry.WithError(err).Warn("failed to inventory object")
}
