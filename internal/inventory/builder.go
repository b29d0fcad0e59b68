package inventory

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deude27/taverto/internal/recognizer"
)

// Builder interprets a script's ordered actions into its inventory.
// A Builder holds no per-script state and may be shared by concurrent
// Build calls; each call owns its own session.
type Builder struct {
	profile *ProfileSwitch
	logger  logrus.FieldLogger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithProfileSwitch sets the profile switch recognizer.
func WithProfileSwitch(p *ProfileSwitch) BuilderOption {
	return func(b *Builder) {
		b.profile = p
	}
}

// WithLogger sets the logger used for non-fatal conditions.
func WithLogger(l logrus.FieldLogger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a Builder. Without options it uses the default
// profile switch and the standard logrus logger.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		profile: DefaultProfileSwitch(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// session is the state of one Build pass. The active database and the
// open record cursor belong to it alone.
type session struct {
	b        *Builder
	obj      *ScriptObject
	activeDB string
	// current indexes the most recent RUN record, -1 until the first RUN.
	current int
}

// Build applies actions to obj in document order. It returns a
// *MalformedRecordError if a SAVE, PRINT or EXPORT precedes every RUN;
// obj must then be discarded. Profile switches without a client id are
// recorded in obj.Warnings and do not stop the pass.
func (b *Builder) Build(obj *ScriptObject, actions []recognizer.Action) error {
	if obj.parsed {
		return fmt.Errorf("%s: %w", obj.Key(), ErrAlreadyParsed)
	}
	obj.parsed = true

	s := &session{b: b, obj: obj, activeDB: obj.DBName, current: -1}
	for i, a := range actions {
		if err := s.apply(i, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) apply(pos int, a recognizer.Action) error {
	switch a.Kind {
	case recognizer.KindRun, recognizer.KindDirectInvoke:
		if a.ObjectName == "" {
			return nil
		}
		s.run(pos, a)

	case recognizer.KindSave:
		rec, err := s.open(pos, a.Kind)
		if err != nil {
			return err
		}
		if a.ObjectName == "" {
			return nil
		}
		target := ResolveName(a.ObjectName, s.activeDB)
		s.obj.TargetTables.Add(target)
		rec.TargetTable = target
		s.obj.SaveAsTable = true

	case recognizer.KindPrint, recognizer.KindExport:
		rec, err := s.open(pos, a.Kind)
		if err != nil {
			return err
		}
		out := make(map[string]string, len(a.Fields)+1)
		for k, v := range a.Fields {
			out[k] = v
		}
		out["action"] = string(a.Kind)
		rec.FileOutput = out
		s.obj.FileExport = true

	case recognizer.KindFrom, recognizer.KindJoin:
		if a.ObjectName == "" {
			return nil
		}
		s.obj.SourceTables.Add(ResolveName(a.ObjectName, s.activeDB))
	}

	return nil
}

func (s *session) run(pos int, a recognizer.Action) {
	name := ResolveName(a.ObjectName, s.activeDB)

	if clientID, ok := s.b.profile.Match(name); ok {
		if clientID == "" {
			err := &UnresolvedContextError{Script: s.obj.Key(), Reference: name, Position: pos}
			s.obj.Warnings = append(s.obj.Warnings, err.Error())
			s.b.logger.WithFields(logrus.Fields{
				"object":    s.obj.Key(),
				"reference": name,
			}).Warn("profile switch without client id, active database unchanged")
			return
		}
		s.activeDB = s.b.profile.Database(clientID)
		return
	}

	rec := StatementRecord{ObjectName: name}
	if a.FormName != "" {
		rec.FormName = ResolveName(a.FormName, s.activeDB)
		s.obj.Forms.Add(rec.FormName)
	}
	s.obj.ObjectsUsed.Add(name)
	s.obj.Statements = append(s.obj.Statements, rec)
	s.current = len(s.obj.Statements) - 1
}

// open returns the record later actions attach to.
func (s *session) open(pos int, kind recognizer.Kind) (*StatementRecord, error) {
	if s.current < 0 {
		return nil, &MalformedRecordError{Script: s.obj.Key(), Action: kind, Position: pos}
	}
	return &s.obj.Statements[s.current], nil
}
