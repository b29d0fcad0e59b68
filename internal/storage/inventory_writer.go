package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/deude27/taverto/internal/inventory"
)

// InventoryWriter persists inventory runs to SQLite.
type InventoryWriter struct {
	db *sql.DB
}

// NewInventoryWriter creates an InventoryWriter.
// DB must have schema already created via CreateSchema() or Open().
func NewInventoryWriter(db *sql.DB) *InventoryWriter {
	return &InventoryWriter{db: db}
}

// WriteRun stores run with its objects and failures in one transaction and
// returns the run id. A run without an ID gets a new UUID. order gives the
// position of each key; keys missing from order are appended in map order.
// With omitSQL the script text is stored as NULL.
func (w *InventoryWriter) WriteRun(
	run *Run,
	order []string,
	objects map[string]*inventory.ScriptObject,
	failures []FailureRecord,
	omitSQL bool,
) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	run.ObjectCount = len(objects)
	run.FailureCount = len(failures)

	tx, err := w.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	_, err = sq.Insert("inventory_runs").
		Columns(
			"run_id", "object_type", "started_at", "finished_at",
			"file_count", "record_count", "object_count", "failure_count", "dropped_count",
		).
		Values(
			run.ID,
			run.ObjectType,
			run.StartedAt.UTC().Format(timeLayout),
			run.FinishedAt.UTC().Format(timeLayout),
			len(run.Files),
			run.RecordCount,
			run.ObjectCount,
			run.FailureCount,
			run.DroppedCount,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return "", fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}

	for i, file := range run.Files {
		_, err := sq.Insert("run_files").
			Columns("run_id", "file_path", "position").
			Values(run.ID, file, i).
			Options("OR IGNORE").
			RunWith(tx).
			Exec()
		if err != nil {
			return "", fmt.Errorf("failed to write run file %s: %w", file, err)
		}
	}

	for pos, key := range orderedKeys(order, objects) {
		if err := writeObject(tx, run.ID, pos, key, objects[key].Summary(), omitSQL); err != nil {
			return "", err
		}
	}

	for i, f := range failures {
		_, err := sq.Insert("run_failures").
			Columns("run_id", "position", "file_path", "object_key", "line", "message").
			Values(run.ID, i, f.FilePath, f.ObjectKey, f.Line, f.Message).
			RunWith(tx).
			Exec()
		if err != nil {
			return "", fmt.Errorf("failed to write failure for %s: %w", f.ObjectKey, err)
		}
	}

	if err := setMetadata(tx, "last_run", run.ID); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

func orderedKeys(order []string, objects map[string]*inventory.ScriptObject) []string {
	keys := make([]string, 0, len(objects))
	seen := make(map[string]bool, len(objects))
	for _, key := range order {
		if _, ok := objects[key]; ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for key := range objects {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

func writeObject(tx *sql.Tx, runID string, pos int, key string, s inventory.Summary, omitSQL bool) error {
	var maskedSQL, convertedSQL any
	if !omitSQL {
		maskedSQL = s.SQL
		if s.ConvertedSQL != "" {
			convertedSQL = s.ConvertedSQL
		}
	}

	_, err := sq.Insert("script_objects").
		Columns(
			"run_id", "object_key", "position", "name", "db_name", "object_type",
			"last_used_date", "override", "masked_sql", "converted_sql",
			"file_export", "save_as_table",
		).
		Values(
			runID, key, pos, s.Name, s.DBName, string(s.Type),
			nullIfEmpty(s.LastUsedDate), s.Override, maskedSQL, convertedSQL,
			s.FileExport, s.SaveAsTable,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	for i, st := range s.Statements {
		var fileOutput any
		if st.FileOutput != nil {
			data, err := json.Marshal(st.FileOutput)
			if err != nil {
				return fmt.Errorf("failed to encode file output for %s: %w", key, err)
			}
			fileOutput = string(data)
		}

		_, err := sq.Insert("statements").
			Columns("run_id", "object_key", "position", "object_name", "form_name", "target_table", "file_output").
			Values(runID, key, i, st.ObjectName, nullIfEmpty(st.FormName), nullIfEmpty(st.TargetTable), fileOutput).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to write statement %d of %s: %w", i, key, err)
		}
	}

	refs := []struct {
		kind  string
		names []string
	}{
		{RefUsed, s.ObjectsUsed},
		{RefForm, s.Forms},
		{RefSource, s.SourceTables},
		{RefTarget, s.TargetTables},
		{RefUnknown, s.UnknownObjects},
	}
	for _, r := range refs {
		for _, name := range r.names {
			_, err := sq.Insert("object_refs").
				Columns("run_id", "object_key", "kind", "ref").
				Values(runID, key, r.kind, name).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to write %s ref %s of %s: %w", r.kind, name, key, err)
			}
		}
	}

	for i, msg := range s.Warnings {
		_, err := sq.Insert("object_warnings").
			Columns("run_id", "object_key", "position", "message").
			Values(runID, key, i, msg).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to write warning for %s: %w", key, err)
		}
	}

	return nil
}

// WriteConversions stores the converted SQL of objects under runID.
// Objects without a conversion are left untouched.
func (w *InventoryWriter) WriteConversions(runID string, objects map[string]*inventory.ScriptObject) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, obj := range objects {
		if obj.ConvertedSQL == "" {
			continue
		}
		_, err := sq.Update("script_objects").
			Set("converted_sql", obj.ConvertedSQL).
			Where(sq.Eq{"run_id": runID, "object_key": key}).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to write conversion for %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversions: %w", err)
	}
	return nil
}

// DeleteRun removes a run and everything recorded under it.
func (w *InventoryWriter) DeleteRun(runID string) error {
	_, err := sq.Delete("inventory_runs").
		Where(sq.Eq{"run_id": runID}).
		RunWith(w.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
