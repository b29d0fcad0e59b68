package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Summary is the flattened, persisted form of a ScriptObject. Sets are
// written as sorted arrays. The unmasked text is never part of it.
type Summary struct {
	Name           string            `json:"name"`
	DBName         string            `json:"dbName"`
	Type           ObjectType        `json:"type"`
	SQL            string            `json:"sql"`
	Statements     []StatementRecord `json:"sqlStmnts"`
	ObjectsUsed    []string          `json:"objectsUsed"`
	Forms          []string          `json:"forms"`
	SourceTables   []string          `json:"sourceTables"`
	TargetTables   []string          `json:"targetTables"`
	UnknownObjects []string          `json:"unknownObjects"`
	FileExport     bool              `json:"fileExport"`
	SaveAsTable    bool              `json:"saveAsTable"`
	LastUsedDate   string            `json:"lastUsedDate,omitempty"`
	Override       bool              `json:"override"`
	ConvertedSQL   string            `json:"convertedSql,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Summary returns the flattened record for o.
func (o *ScriptObject) Summary() Summary {
	stmts := make([]StatementRecord, len(o.Statements))
	for i, st := range o.Statements {
		stmts[i] = st.clone()
	}

	var warnings []string
	if len(o.Warnings) > 0 {
		warnings = append([]string(nil), o.Warnings...)
	}

	return Summary{
		Name:           o.Name,
		DBName:         o.DBName,
		Type:           o.Type,
		SQL:            o.SQL,
		Statements:     stmts,
		ObjectsUsed:    o.ObjectsUsed.Sorted(),
		Forms:          o.Forms.Sorted(),
		SourceTables:   o.SourceTables.Sorted(),
		TargetTables:   o.TargetTables.Sorted(),
		UnknownObjects: o.UnknownObjects.Sorted(),
		FileExport:     o.FileExport,
		SaveAsTable:    o.SaveAsTable,
		LastUsedDate:   o.LastUsedDate,
		Override:       o.Override,
		ConvertedSQL:   o.ConvertedSQL,
		Warnings:       warnings,
	}
}

// WithoutSQL returns s with the script text removed.
func (s Summary) WithoutSQL() Summary {
	s.SQL = ""
	s.ConvertedSQL = ""
	return s
}

// FromSummary rebuilds a live ScriptObject from a persisted summary. The
// object counts as parsed; its masked text stands in for the raw text.
func FromSummary(s Summary) (*ScriptObject, error) {
	obj, err := NewScriptObject(Options{
		Name:         s.Name,
		DBName:       s.DBName,
		Type:         string(s.Type),
		SQL:          s.SQL,
		LastUsedDate: s.LastUsedDate,
		Override:     s.Override,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild %s.%s: %w", s.DBName, s.Name, err)
	}

	// Keep the text byte for byte; NewScriptObject trims.
	obj.RawSQL = s.SQL
	obj.SQL = s.SQL

	for _, st := range s.Statements {
		obj.Statements = append(obj.Statements, st.clone())
	}
	obj.ObjectsUsed = NewStringSet(s.ObjectsUsed...)
	obj.Forms = NewStringSet(s.Forms...)
	obj.SourceTables = NewStringSet(s.SourceTables...)
	obj.TargetTables = NewStringSet(s.TargetTables...)
	obj.UnknownObjects = NewStringSet(s.UnknownObjects...)
	obj.FileExport = s.FileExport
	obj.SaveAsTable = s.SaveAsTable
	obj.ConvertedSQL = s.ConvertedSQL
	obj.converted = s.ConvertedSQL != ""
	if len(s.Warnings) > 0 {
		obj.Warnings = append([]string(nil), s.Warnings...)
	}
	obj.parsed = true

	return obj, nil
}

func (st StatementRecord) clone() StatementRecord {
	if st.FileOutput != nil {
		out := make(map[string]string, len(st.FileOutput))
		for k, v := range st.FileOutput {
			out[k] = v
		}
		st.FileOutput = out
	}
	return st
}

// Summaries flattens objects keyed by their declared name.
func Summaries(objects map[string]*ScriptObject, omitSQL bool) map[string]Summary {
	out := make(map[string]Summary, len(objects))
	for key, obj := range objects {
		s := obj.Summary()
		if omitSQL {
			s = s.WithoutSQL()
		}
		out[key] = s
	}
	return out
}

// WriteSummaries encodes summaries as an indented JSON object.
func WriteSummaries(w io.Writer, summaries map[string]Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return fmt.Errorf("failed to encode summaries: %w", err)
	}
	return nil
}

// DecodeSummaries reads a JSON object of summaries. Fields outside the
// Summary schema are rejected.
func DecodeSummaries(r io.Reader) (map[string]Summary, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var summaries map[string]Summary
	if err := dec.Decode(&summaries); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}
	if summaries == nil {
		summaries = map[string]Summary{}
	}
	return summaries, nil
}

// Reconstruct rebuilds live objects from summaries.
func Reconstruct(summaries map[string]Summary) (map[string]*ScriptObject, error) {
	keys := make([]string, 0, len(summaries))
	for key := range summaries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	objects := make(map[string]*ScriptObject, len(summaries))
	for _, key := range keys {
		obj, err := FromSummary(summaries[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		objects[key] = obj
	}
	return objects, nil
}

// ReadSummaryFile loads and reconstructs the objects stored at path.
func ReadSummaryFile(path string) (map[string]*ScriptObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()

	summaries, err := DecodeSummaries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Reconstruct(summaries)
}

// WriteSummaryFile writes objects to path atomically (temp file, then rename).
func WriteSummaryFile(path string, objects map[string]*ScriptObject, omitSQL bool) error {
	var buf bytes.Buffer
	if err := WriteSummaries(&buf, Summaries(objects, omitSQL)); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
