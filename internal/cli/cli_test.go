package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/deude27/taverto/internal/config"
)

const cliExtract = `QUERY: TA01.DAILY
LAST USE DATE 2020-01-15
QUERY_START
RUN TA01.LOAD_Q
SAVE DATA AS DAILY_OUT
QUERY_END
QUERY: TA01.LOAD_Q
QUERY_START
SELECT ID, CURRENT DATE FROM ORDERS FETCH FIRST 5 ROWS ONLY
QUERY_END
QUERY: TA01.BROKEN
QUERY_START
PRINT REPORT
QUERY_END
`

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	color.NoColor = true
	os.Exit(m.Run())
}

// setupInventory writes cliExtract into a temp dir and returns inventory
// options that write the summary (and database, when withDB) next to it.
func setupInventory(t *testing.T, withDB bool) inventoryOptions {
	t.Helper()

	dir := t.TempDir()
	extractPath := filepath.Join(dir, "extracts", "daily.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(extractPath), 0755))
	require.NoError(t, os.WriteFile(extractPath, []byte(cliExtract), 0644))

	c := config.Default()
	opts := inventoryOptions{
		Paths:      []string{filepath.Dir(extractPath)},
		ObjectType: c.Extract.ObjectType,
		Summary:    filepath.Join(dir, "out", "summary.json"),
		Workers:    2,
		Quiet:      true,
	}
	if withDB {
		opts.Database = filepath.Join(dir, "out", "inventory.db")
	}
	return opts
}

// runInventoryFixture runs one inventory pass over the fixture.
func runInventoryFixture(t *testing.T, opts inventoryOptions) string {
	t.Helper()
	runID, err := executeInventory(context.Background(), config.Default(), opts, io.Discard)
	require.NoError(t, err)
	return runID
}
