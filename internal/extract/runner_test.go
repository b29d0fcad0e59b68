package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExtract(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeExtract(t, filepath.Join(dir, "a.txt"), sampleExtract)
	writeExtract(t, filepath.Join(dir, "b.txt"), `QUERY: TA01.MYQ
QUERY_START
RUN REPLACED
QUERY_END
QUERY: TA03.NEW
QUERY_START
RUN SET07_Q
RUN X
QUERY_END
QUERY_START
QUERY_END
`)
	writeExtract(t, filepath.Join(dir, "notes.md"), "QUERY: TA09.SKIP\nQUERY_START\nQUERY_END\n")

	progress := &recordingProgress{}
	p := NewProcessor(WithLogger(quietLogger()), WithProgress(progress))
	r := NewRunner(p, []string{"**/*.txt"}, nil)

	inv, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"TA01.MYQ", "TA01.EMPTY", "TA02.SEL", "TA03.NEW"}, inv.Order)
	assert.NotContains(t, inv.Objects, "TA09.SKIP")
	assert.Equal(t, []string{"TA01.REPLACED"}, inv.Objects["TA01.MYQ"].ObjectsUsed.Sorted())
	assert.Equal(t, []string{"TA07.X"}, inv.Objects["TA03.NEW"].ObjectsUsed.Sorted())

	stats := inv.Stats
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 6, stats.Records)
	assert.Equal(t, 4, stats.Objects)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.Dropped)
	assert.Len(t, inv.Failures, 1)

	assert.Equal(t, 2, progress.files)
	assert.Same(t, stats, progress.completed)
}

func TestRunner_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.dat")
	writeExtract(t, explicit, "")
	writeExtract(t, filepath.Join(dir, "x", "one.txt"), "")
	writeExtract(t, filepath.Join(dir, "archive", "old.txt"), "")

	r := NewRunner(NewProcessor(), []string{"**/*.txt"}, []string{"archive/**"})
	files, err := r.Files([]string{explicit, dir, explicit})
	require.NoError(t, err)
	assert.Equal(t, []string{explicit, filepath.Join(dir, "x", "one.txt")}, files)
}

func TestRunner_MissingPathAborts(t *testing.T) {
	t.Parallel()

	r := NewRunner(NewProcessor(WithLogger(quietLogger())), []string{"**/*.txt"}, nil)
	_, err := r.Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.txt")})
	assert.Error(t, err)
}
