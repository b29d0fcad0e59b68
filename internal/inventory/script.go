package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deude27/taverto/internal/masking"
	"github.com/deude27/taverto/internal/recognizer"
)

// ObjectType is the kind of QMF object a script was extracted from.
type ObjectType string

const (
	ObjectTypeQuery ObjectType = "query"
	ObjectTypeProc  ObjectType = "proc"
	ObjectTypeForm  ObjectType = "form"
)

// ParseObjectType parses s case-insensitively.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(strings.ToLower(strings.TrimSpace(s))); t {
	case ObjectTypeQuery, ObjectTypeProc, ObjectTypeForm:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q (want query, proc or form)", ErrInvalidObjectType, s)
	}
}

// StringSet is an unordered set of names.
type StringSet map[string]struct{}

// NewStringSet returns a set holding items.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s StringSet) Add(item string) {
	s[item] = struct{}{}
}

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in ascending order. An empty set yields an
// empty, non-nil slice so it serializes as [].
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// StatementRecord is one classified RUN action and what was attached to it.
type StatementRecord struct {
	ObjectName  string            `json:"objectName"`
	FormName    string            `json:"formName,omitempty"`
	TargetTable string            `json:"targetTable,omitempty"`
	FileOutput  map[string]string `json:"fileOutput,omitempty"`
}

// Options holds the fields a ScriptObject can be created with. Fields not
// listed here cannot be set at construction.
type Options struct {
	// Name is the local object name, without database qualifier.
	Name string
	// DBName is the declared database; it seeds the active database.
	DBName string
	// SQL is the raw, unmasked script text. Surrounding space is trimmed.
	SQL string
	// Type is query, proc or form. Defaults to query when empty.
	Type string
	// LastUsedDate is the yyyy-mm-dd date from the extract, if any.
	LastUsedDate string
	// Override marks an object whose conversion was replaced by hand.
	Override bool
}

// ScriptObject is one parsed query or procedure and its inventory.
type ScriptObject struct {
	Name         string
	DBName       string
	Type         ObjectType
	LastUsedDate string
	Override     bool

	// RawSQL is the text as extracted. It is never persisted.
	RawSQL string
	// SQL is RawSQL after masking.
	SQL string

	Statements     []StatementRecord
	ObjectsUsed    StringSet
	Forms          StringSet
	SourceTables   StringSet
	TargetTables   StringSet
	UnknownObjects StringSet

	FileExport  bool
	SaveAsTable bool

	// ConvertedSQL is filled by Convert.
	ConvertedSQL string
	// Warnings records non-fatal conditions met while parsing.
	Warnings []string

	parsed    bool
	converted bool
}

// NewScriptObject creates an unparsed ScriptObject from opts.
func NewScriptObject(opts Options) (*ScriptObject, error) {
	typ := ObjectTypeQuery
	if opts.Type != "" {
		t, err := ParseObjectType(opts.Type)
		if err != nil {
			return nil, err
		}
		typ = t
	}

	sql := strings.TrimSpace(opts.SQL)
	return &ScriptObject{
		Name:           opts.Name,
		DBName:         opts.DBName,
		Type:           typ,
		LastUsedDate:   opts.LastUsedDate,
		Override:       opts.Override,
		RawSQL:         sql,
		SQL:            sql,
		Statements:     []StatementRecord{},
		ObjectsUsed:    NewStringSet(),
		Forms:          NewStringSet(),
		SourceTables:   NewStringSet(),
		TargetTables:   NewStringSet(),
		UnknownObjects: NewStringSet(),
	}, nil
}

// Key returns the qualified name the object was declared under.
func (o *ScriptObject) Key() string {
	if o.DBName == "" {
		return o.Name
	}
	return o.DBName + "." + o.Name
}

// Parsed reports whether the object already went through an inventory pass.
func (o *ScriptObject) Parsed() bool {
	return o.parsed
}

// Parse masks the raw text, recognizes its actions and builds the inventory.
// Masking always runs before recognition.
func (o *ScriptObject) Parse(m *masking.Masker, r recognizer.Recognizer, b *Builder) error {
	if o.parsed {
		return fmt.Errorf("%s: %w", o.Key(), ErrAlreadyParsed)
	}
	o.SQL = m.Mask(o.RawSQL)
	return b.Build(o, r.Recognize(o.SQL))
}
