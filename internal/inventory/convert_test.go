package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransformer struct {
	calls int
	err   error
}

func (c *countingTransformer) Transform(sql string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "converted: " + sql, nil
}

func TestConvert_Memoized(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "Q", "SELECT 1 FROM SYSIBM.SYSDUMMY1")
	tr := &countingTransformer{}

	require.NoError(t, obj.Convert(tr))
	require.NoError(t, obj.Convert(tr))

	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, "converted: SELECT 1 FROM SYSIBM.SYSDUMMY1", obj.ConvertedSQL)
}

func TestConvert_RetriesAfterFailure(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "Q", "SELECT 1")
	tr := &countingTransformer{err: errors.New("boom")}

	assert.Error(t, obj.Convert(tr))
	assert.Empty(t, obj.ConvertedSQL)

	tr.err = nil
	require.NoError(t, obj.Convert(tr))
	assert.Equal(t, 2, tr.calls)
}

func TestConvert_ReconstructedObjectKeepsResult(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "Q", "SELECT 1")
	require.NoError(t, obj.Convert(&countingTransformer{}))

	rebuilt, err := FromSummary(obj.Summary())
	require.NoError(t, err)

	tr := &countingTransformer{}
	require.NoError(t, rebuilt.Convert(tr))
	assert.Zero(t, tr.calls)
	assert.Equal(t, obj.ConvertedSQL, rebuilt.ConvertedSQL)
}
