package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/deude27/taverto/internal/inventory"
)

// InventoryReader loads inventory runs back from SQLite.
type InventoryReader struct {
	db *sql.DB
}

// NewInventoryReader creates an InventoryReader instance.
// DB should have schema already created.
func NewInventoryReader(db *sql.DB) *InventoryReader {
	return &InventoryReader{db: db}
}

// LatestRun returns the most recently written run.
// Returns (nil, nil) if no run exists.
func (r *InventoryReader) LatestRun() (*Run, error) {
	runID, err := getMetadata(r.db, "last_run")
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, nil
	}
	return r.GetRun(runID)
}

var runColumns = []string{
	"run_id", "object_type", "started_at", "finished_at",
	"record_count", "object_count", "failure_count", "dropped_count",
}

// GetRun retrieves a run and its files.
// Returns (nil, nil) if the run is not found.
func (r *InventoryReader) GetRun(runID string) (*Run, error) {
	row := sq.Select(runColumns...).
		From("inventory_runs").
		Where(sq.Eq{"run_id": runID}).
		RunWith(r.db).
		QueryRow()

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	rows, err := sq.Select("file_path").
		From("run_files").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query files of run %s: %w", runID, err)
	}
	defer rows.Close()

	run.Files = []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		run.Files = append(run.Files, path)
	}
	return run, rows.Err()
}

// ListRuns returns every run, newest first, without their file lists.
func (r *InventoryReader) ListRuns() ([]*Run, error) {
	rows, err := sq.Select(runColumns...).
		From("inventory_runs").
		OrderBy("finished_at DESC", "rowid DESC").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var startedAt, finishedAt string
	err := s.Scan(
		&run.ID,
		&run.ObjectType,
		&startedAt,
		&finishedAt,
		&run.RecordCount,
		&run.ObjectCount,
		&run.FailureCount,
		&run.DroppedCount,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	run.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
	return run, nil
}

// LoadSummaries returns the summaries stored under runID and their keys in
// stored order.
func (r *InventoryReader) LoadSummaries(runID string) (map[string]inventory.Summary, []string, error) {
	summaries, order, err := r.loadObjectRows(runID)
	if err != nil {
		return nil, nil, err
	}
	if err := r.loadStatements(runID, summaries); err != nil {
		return nil, nil, err
	}
	if err := r.loadRefs(runID, summaries); err != nil {
		return nil, nil, err
	}
	if err := r.loadWarnings(runID, summaries); err != nil {
		return nil, nil, err
	}

	out := make(map[string]inventory.Summary, len(summaries))
	for key, s := range summaries {
		out[key] = *s
	}
	return out, order, nil
}

// LoadObjects reconstructs the ScriptObjects stored under runID.
func (r *InventoryReader) LoadObjects(runID string) (map[string]*inventory.ScriptObject, []string, error) {
	summaries, order, err := r.LoadSummaries(runID)
	if err != nil {
		return nil, nil, err
	}
	objects, err := inventory.Reconstruct(summaries)
	if err != nil {
		return nil, nil, err
	}
	return objects, order, nil
}

func (r *InventoryReader) loadObjectRows(runID string) (map[string]*inventory.Summary, []string, error) {
	rows, err := sq.Select(
		"object_key", "name", "db_name", "object_type", "last_used_date", "override",
		"masked_sql", "converted_sql", "file_export", "save_as_table",
	).
		From("script_objects").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query objects of run %s: %w", runID, err)
	}
	defer rows.Close()

	summaries := make(map[string]*inventory.Summary)
	var order []string
	for rows.Next() {
		var (
			key                            string
			typ                            string
			lastUsed, maskedSQL, converted sql.NullString
		)
		s := &inventory.Summary{
			Statements:     []inventory.StatementRecord{},
			ObjectsUsed:    []string{},
			Forms:          []string{},
			SourceTables:   []string{},
			TargetTables:   []string{},
			UnknownObjects: []string{},
		}
		err := rows.Scan(
			&key, &s.Name, &s.DBName, &typ, &lastUsed, &s.Override,
			&maskedSQL, &converted, &s.FileExport, &s.SaveAsTable,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan object: %w", err)
		}
		s.Type = inventory.ObjectType(typ)
		s.LastUsedDate = lastUsed.String
		s.SQL = maskedSQL.String
		s.ConvertedSQL = converted.String

		summaries[key] = s
		order = append(order, key)
	}
	return summaries, order, rows.Err()
}

func (r *InventoryReader) loadStatements(runID string, summaries map[string]*inventory.Summary) error {
	rows, err := sq.Select("object_key", "object_name", "form_name", "target_table", "file_output").
		From("statements").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("object_key", "position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query statements of run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key                          string
			st                           inventory.StatementRecord
			form, target, fileOutputJSON sql.NullString
		)
		if err := rows.Scan(&key, &st.ObjectName, &form, &target, &fileOutputJSON); err != nil {
			return fmt.Errorf("failed to scan statement: %w", err)
		}
		st.FormName = form.String
		st.TargetTable = target.String
		if fileOutputJSON.Valid {
			if err := json.Unmarshal([]byte(fileOutputJSON.String), &st.FileOutput); err != nil {
				return fmt.Errorf("failed to decode file output of %s: %w", key, err)
			}
		}

		if s, ok := summaries[key]; ok {
			s.Statements = append(s.Statements, st)
		}
	}
	return rows.Err()
}

func (r *InventoryReader) loadRefs(runID string, summaries map[string]*inventory.Summary) error {
	rows, err := sq.Select("object_key", "kind", "ref").
		From("object_refs").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("object_key", "kind", "ref").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query refs of run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, kind, ref string
		if err := rows.Scan(&key, &kind, &ref); err != nil {
			return fmt.Errorf("failed to scan ref: %w", err)
		}
		s, ok := summaries[key]
		if !ok {
			continue
		}
		switch kind {
		case RefUsed:
			s.ObjectsUsed = append(s.ObjectsUsed, ref)
		case RefForm:
			s.Forms = append(s.Forms, ref)
		case RefSource:
			s.SourceTables = append(s.SourceTables, ref)
		case RefTarget:
			s.TargetTables = append(s.TargetTables, ref)
		case RefUnknown:
			s.UnknownObjects = append(s.UnknownObjects, ref)
		}
	}
	return rows.Err()
}

func (r *InventoryReader) loadWarnings(runID string, summaries map[string]*inventory.Summary) error {
	rows, err := sq.Select("object_key", "message").
		From("object_warnings").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("object_key", "position").
		RunWith(r.db).
		Query()
	if err != nil {
		return fmt.Errorf("failed to query warnings of run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, msg string
		if err := rows.Scan(&key, &msg); err != nil {
			return fmt.Errorf("failed to scan warning: %w", err)
		}
		if s, ok := summaries[key]; ok {
			s.Warnings = append(s.Warnings, msg)
		}
	}
	return rows.Err()
}

// LoadFailures returns the failures recorded for runID in the order found.
func (r *InventoryReader) LoadFailures(runID string) ([]FailureRecord, error) {
	rows, err := sq.Select("file_path", "object_key", "line", "message").
		From("run_failures").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query failures of run %s: %w", runID, err)
	}
	defer rows.Close()

	failures := []FailureRecord{}
	for rows.Next() {
		var f FailureRecord
		if err := rows.Scan(&f.FilePath, &f.ObjectKey, &f.Line, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// FindReferences returns the objects of runID that reference name, which
// must be fully qualified. Results are ordered by object key then kind.
func (r *InventoryReader) FindReferences(runID, name string) ([]Reference, error) {
	rows, err := sq.Select("object_key", "kind").
		From("object_refs").
		Where(sq.Eq{"run_id": runID, "ref": name}).
		OrderBy("object_key", "kind").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query references to %s: %w", name, err)
	}
	defer rows.Close()

	refs := []Reference{}
	for rows.Next() {
		var ref Reference
		if err := rows.Scan(&ref.ObjectKey, &ref.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
