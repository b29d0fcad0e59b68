package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deude27/taverto/internal/inventory"
	"github.com/deude27/taverto/internal/masking"
)

const (
	procsExtract   = "../../testdata/extracts/procs.txt"
	queriesExtract = "../../testdata/extracts/queries.txt"
)

func TestReadExtractFile_Procedures(t *testing.T) {
	t.Parallel()

	p := NewProcessor(WithObjectType("proc"), WithLogger(quietLogger()))
	res, err := p.ReadExtractFile(context.Background(), procsExtract)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Records)
	assert.Equal(t, []string{"TA6899.ROD_DAILY_P", "TA01.CLIENT_SWITCH_P"}, res.Order)

	t.Run("daily batch", func(t *testing.T) {
		obj := res.Objects["TA6899.ROD_DAILY_P"]
		require.NotNil(t, obj)
		assert.Equal(t, inventory.ObjectTypeProc, obj.Type)
		assert.Equal(t, "2023-11-30", obj.LastUsedDate)
		assert.Equal(t, []string{
			"TA6899.ROD_EMOB_ONBOARDING_Q",
			"TA6899.ROD_RUNTEST_P",
			"TA6899.SETSQLID_Q",
		}, obj.ObjectsUsed.Sorted())
		assert.Equal(t, []string{"TA6899.ROD_EMOB_ONBOARDING_F"}, obj.Forms.Sorted())
		assert.Equal(t, []string{"TA6899.CCRPT1_T2", "TA6899.FINAL_TEMP"}, obj.TargetTables.Sorted())
		assert.Empty(t, obj.SourceTables)
		assert.True(t, obj.FileExport)
		assert.True(t, obj.SaveAsTable)

		require.Len(t, obj.Statements, 3)
		printed := obj.Statements[1]
		assert.Equal(t, "TA6899.ROD_RUNTEST_P", printed.ObjectName)
		assert.Equal(t, "PRINT", printed.FileOutput["action"])
		assert.Equal(t, "133", printed.FileOutput["WIDTH"])

		last := obj.Statements[2]
		assert.Equal(t, "TA6899.ROD_EMOB_ONBOARDING_F", last.FormName)
		assert.Equal(t, "TA6899.CCRPT1_T2", last.TargetTable)
		assert.Equal(t, "EXPORT", last.FileOutput["action"])
		assert.Equal(t, "DB2T.TA6899.CLI.TEMP1", last.FileOutput["to"])
	})

	t.Run("profile switch", func(t *testing.T) {
		obj := res.Objects["TA01.CLIENT_SWITCH_P"]
		require.NotNil(t, obj)
		assert.Equal(t, []string{"TA0042.AFTER_Q", "TA0042.MONTHLY_Q"}, obj.ObjectsUsed.Sorted())
		assert.Equal(t, []string{"TA0042.MONTHLY_F"}, obj.Forms.Sorted())
		assert.Equal(t, []string{"TA0042.MONTHLY_OUT"}, obj.TargetTables.Sorted())
		require.Len(t, obj.Statements, 2, "switches are not statements")
		require.Len(t, obj.Warnings, 1)
		assert.Contains(t, obj.Warnings[0], "TA0042.SET_Q")
	})

	t.Run("orphan export", func(t *testing.T) {
		assert.NotContains(t, res.Objects, "TA01.ORPHAN_EXPORT_P")
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "TA01.ORPHAN_EXPORT_P", res.Failures[0].Key)
		assert.Equal(t, procsExtract, res.Failures[0].File)
		assert.ErrorIs(t, res.Failures[0], inventory.ErrMalformedRecord)
	})
}

func TestReadExtractFile_Queries(t *testing.T) {
	t.Parallel()

	p := NewProcessor(WithLogger(quietLogger()))
	res, err := p.ReadExtractFile(context.Background(), queriesExtract)
	require.NoError(t, err)
	require.Empty(t, res.Failures)

	summary := res.Objects["TA01.CUSTOMER_SUMMARY_Q"]
	require.NotNil(t, summary)
	assert.Equal(t, []string{"TA01.CUSTOMERS", "TA01.ORDERS"}, summary.SourceTables.Sorted())
	assert.Empty(t, summary.ObjectsUsed)
	assert.NotContains(t, summary.SQL, "123-45-6789")
	assert.Contains(t, summary.SQL, "'"+masking.DefaultToken+"'")

	dummy := res.Objects["TA01.DUMMY_Q"]
	require.NotNil(t, dummy)
	assert.Equal(t, []string{"TA01.SYSDUMMY1"}, dummy.SourceTables.Sorted())
}
