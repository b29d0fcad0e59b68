package cli

// Test Plan for List and Refs Commands:
// - executeList reads a summary file in key order
// - executeList reads the latest run, a named run, failures and runs from a database
// - executeList rejects database-only options without --db
// - executeRefs finds objects that run, read or save a name
// - executeRefs requires a database and a qualified name

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/storage"
)

func TestExecuteList_SummaryFile(t *testing.T) {
	t.Parallel()

	opts := setupInventory(t, false)
	runInventoryFixture(t, opts)

	var out bytes.Buffer
	err := executeList(&out, listOptions{Summary: opts.Summary, Format: "csv,header"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME,DB,TYPE"))
	assert.Equal(t, "TA01.DAILY,TA01,query,TA01.LOAD_Q,-,-,TA01.DAILY_OUT,no,yes,2020-01-15", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "TA01.LOAD_Q,TA01,query,-,-,TA01.ORDERS"))
}

func TestExecuteList_SummaryFileMissing(t *testing.T) {
	t.Parallel()

	err := executeList(&bytes.Buffer{}, listOptions{
		Summary: filepath.Join(t.TempDir(), "missing.json"),
		Format:  TableFormatTable,
	})
	assert.Error(t, err)
}

func TestExecuteList_Database(t *testing.T) {
	t.Parallel()

	opts := setupInventory(t, true)
	first := runInventoryFixture(t, opts)
	second := runInventoryFixture(t, opts)
	require.NotEqual(t, first, second)

	t.Run("latest run as json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeList(&out, listOptions{DB: opts.Database, Format: TableFormatJSON}))

		var summaries []inventory.Summary
		require.NoError(t, json.Unmarshal(out.Bytes(), &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "DAILY", summaries[0].Name)
		assert.Equal(t, "LOAD_Q", summaries[1].Name)
	})

	t.Run("named run", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeList(&out, listOptions{DB: opts.Database, Run: first, Format: "csv"}))
		assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 2)
	})

	t.Run("unknown run", func(t *testing.T) {
		err := executeList(&bytes.Buffer{}, listOptions{DB: opts.Database, Run: "nope", Format: "csv"})
		assert.ErrorContains(t, err, "run nope not found")
	})

	t.Run("failures", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeList(&out, listOptions{DB: opts.Database, Failed: true, Format: TableFormatJSON}))

		var failures []storage.FailureRecord
		require.NoError(t, json.Unmarshal(out.Bytes(), &failures))
		require.Len(t, failures, 1)
		assert.Equal(t, "TA01.BROKEN", failures[0].ObjectKey)
	})

	t.Run("runs", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, executeList(&out, listOptions{DB: opts.Database, Runs: true, Format: "csv"}))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], second+","), "newest run first")
	})
}

func TestExecuteList_EmptyDatabase(t *testing.T) {
	t.Parallel()

	_, path := storage.NewTestDBFile(t)
	err := executeList(&bytes.Buffer{}, listOptions{DB: path, Format: TableFormatTable})
	assert.ErrorContains(t, err, "no inventory runs")
}

func TestExecuteList_DatabaseOptionsRequireDB(t *testing.T) {
	t.Parallel()

	for _, opts := range []listOptions{
		{Failed: true},
		{Runs: true},
		{Run: "abc"},
	} {
		opts.Summary = "summary.json"
		opts.Format = TableFormatTable
		assert.ErrorContains(t, executeList(&bytes.Buffer{}, opts), "require --db")
	}
}

func TestExecuteRefs(t *testing.T) {
	t.Parallel()

	opts := setupInventory(t, true)
	runInventoryFixture(t, opts)

	tests := []struct {
		name     string
		expected string
	}{
		{"TA01.LOAD_Q", "TA01.DAILY,used\n"},
		{"TA01.ORDERS", "TA01.LOAD_Q,source\n"},
		{"TA01.DAILY_OUT", "TA01.DAILY,target\n"},
		{"TA09.NOTHING", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, executeRefs(&out, opts.Database, "", tt.name, TableFormatCSV))
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestExecuteRefs_Errors(t *testing.T) {
	t.Parallel()

	assert.ErrorContains(t, executeRefs(&bytes.Buffer{}, "", "", "TA01.X", TableFormatCSV), "no database")

	_, path := storage.NewTestDBFile(t)
	assert.ErrorContains(t, executeRefs(&bytes.Buffer{}, path, "", "UNQUALIFIED", TableFormatCSV), "must be qualified")
}
