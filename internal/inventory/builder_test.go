package inventory

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deude27/taverto/internal/masking"
	"github.com/deude27/taverto/internal/recognizer"
)

func newTestObject(t *testing.T, db, name, sql string) *ScriptObject {
	t.Helper()
	obj, err := NewScriptObject(Options{Name: name, DBName: db, SQL: sql, Type: "proc"})
	require.NoError(t, err)
	return obj
}

func quietBuilder() *Builder {
	logger, _ := test.NewNullLogger()
	return NewBuilder(WithLogger(logger))
}

func TestBuilder_RunAndSave(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "MYQ", "")
	err := quietBuilder().Build(obj, []recognizer.Action{
		{Kind: recognizer.KindRun, ObjectName: "OBJ1"},
		{Kind: recognizer.KindSave, ObjectName: "TGT"},
	})
	require.NoError(t, err)

	assert.Equal(t, []StatementRecord{{ObjectName: "TA01.OBJ1", TargetTable: "TA01.TGT"}}, obj.Statements)
	assert.Equal(t, []string{"TA01.OBJ1"}, obj.ObjectsUsed.Sorted())
	assert.Equal(t, []string{"TA01.TGT"}, obj.TargetTables.Sorted())
	assert.True(t, obj.SaveAsTable)
	assert.False(t, obj.FileExport)
	assert.Empty(t, obj.UnknownObjects)
}

func TestBuilder_FormsAndDirectInvoke(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "P", "")
	err := quietBuilder().Build(obj, []recognizer.Action{
		{Kind: recognizer.KindRun, ObjectName: "TA99.Q1", FormName: "TA99.F1"},
		{Kind: recognizer.KindDirectInvoke, ObjectName: "P2"},
	})
	require.NoError(t, err)

	require.Len(t, obj.Statements, 2)
	assert.Equal(t, StatementRecord{ObjectName: "TA01.Q1", FormName: "TA01.F1"}, obj.Statements[0])
	assert.Equal(t, StatementRecord{ObjectName: "TA01.P2"}, obj.Statements[1])
	assert.Equal(t, []string{"TA01.F1"}, obj.Forms.Sorted())
	assert.Equal(t, []string{"TA01.P2", "TA01.Q1"}, obj.ObjectsUsed.Sorted())
}

func TestBuilder_PrintAndExportAttachToLastRun(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"object": "REPORT", "to": "DB2T.OUT"}
	obj := newTestObject(t, "TA01", "P", "")
	err := quietBuilder().Build(obj, []recognizer.Action{
		{Kind: recognizer.KindRun, ObjectName: "Q1"},
		{Kind: recognizer.KindRun, ObjectName: "Q2"},
		{Kind: recognizer.KindExport, Fields: fields},
	})
	require.NoError(t, err)

	assert.Nil(t, obj.Statements[0].FileOutput)
	assert.Equal(t, map[string]string{"object": "REPORT", "to": "DB2T.OUT", "action": "EXPORT"}, obj.Statements[1].FileOutput)
	assert.True(t, obj.FileExport)

	// The captured fields are a copy.
	fields["to"] = "changed"
	assert.Equal(t, "DB2T.OUT", obj.Statements[1].FileOutput["to"])
}

func TestBuilder_FromJoinOnlyTouchSourceTables(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "Q", "")
	err := quietBuilder().Build(obj, []recognizer.Action{
		{Kind: recognizer.KindFrom, ObjectName: "ACCOUNTS"},
		{Kind: recognizer.KindJoin, ObjectName: "TA02.BALANCES"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"TA01.ACCOUNTS", "TA01.BALANCES"}, obj.SourceTables.Sorted())
	assert.Empty(t, obj.Statements)
	assert.Empty(t, obj.ObjectsUsed)
}

func TestBuilder_OtherActionsIgnored(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "P", "")
	err := quietBuilder().Build(obj, []recognizer.Action{
		{Kind: recognizer.KindOther, Fields: map[string]string{"command": "ERASE"}},
		{Kind: recognizer.KindOther, Fields: map[string]string{"command": "TSO"}},
	})
	require.NoError(t, err)

	assert.Empty(t, obj.Statements)
	assert.Empty(t, obj.ObjectsUsed)
	assert.False(t, obj.SaveAsTable)
	assert.False(t, obj.FileExport)
}

func TestBuilder_SaveWithoutRunIsMalformed(t *testing.T) {
	t.Parallel()

	kinds := []recognizer.Kind{recognizer.KindSave, recognizer.KindPrint, recognizer.KindExport}
	for _, kind := range kinds {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			obj := newTestObject(t, "TA01", "BAD", "")
			err := quietBuilder().Build(obj, []recognizer.Action{
				{Kind: kind, ObjectName: "TGT", Fields: map[string]string{"object": "REPORT"}},
				{Kind: recognizer.KindRun, ObjectName: "Q1"},
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord))

			var malformed *MalformedRecordError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, kind, malformed.Action)
			assert.Equal(t, 0, malformed.Position)
			assert.Equal(t, "TA01.BAD", malformed.Script)

			assert.Empty(t, obj.TargetTables)
			assert.Empty(t, obj.Statements)
			assert.False(t, obj.SaveAsTable)
			assert.False(t, obj.FileExport)
		})
	}
}

func TestBuilder_ProfileSwitchChangesContextForLaterActions(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "P", "")
	err := quietBuilder().Build(obj, []recognizer.Action{
		{Kind: recognizer.KindRun, ObjectName: "BEFORE_Q"},
		{Kind: recognizer.KindFrom, ObjectName: "SRC1"},
		{Kind: recognizer.KindRun, ObjectName: "SET6899_Q"},
		{Kind: recognizer.KindRun, ObjectName: "TA01.AFTER_Q"},
		{Kind: recognizer.KindSave, ObjectName: "OUT"},
		{Kind: recognizer.KindFrom, ObjectName: "SRC2"},
	})
	require.NoError(t, err)

	// The switch itself is not recorded.
	require.Len(t, obj.Statements, 2)
	assert.Equal(t, "TA01.BEFORE_Q", obj.Statements[0].ObjectName)
	assert.Equal(t, "TA6899.AFTER_Q", obj.Statements[1].ObjectName)
	assert.Equal(t, "TA6899.OUT", obj.Statements[1].TargetTable)
	assert.Equal(t, []string{"TA01.SRC1", "TA6899.SRC2"}, obj.SourceTables.Sorted())
	assert.False(t, obj.ObjectsUsed.Has("TA01.SET6899_Q"))

	// The declared database is not rewritten.
	assert.Equal(t, "TA01", obj.DBName)
	assert.Equal(t, "TA01.P", obj.Key())
}

func TestBuilder_ProfileSwitchWithoutClientID(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	obj := newTestObject(t, "TA01", "P", "")
	err := NewBuilder(WithLogger(logger)).Build(obj, []recognizer.Action{
		{Kind: recognizer.KindRun, ObjectName: "SET_Q"},
		{Kind: recognizer.KindRun, ObjectName: "Q1"},
	})
	require.NoError(t, err)

	require.Len(t, obj.Statements, 1)
	assert.Equal(t, "TA01.Q1", obj.Statements[0].ObjectName)
	require.Len(t, obj.Warnings, 1)
	assert.Contains(t, obj.Warnings[0], ErrUnresolvedContext.Error())

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "TA01.SET_Q", hook.LastEntry().Data["reference"])
}

func TestBuilder_CustomProfileSwitch(t *testing.T) {
	t.Parallel()

	ps, err := NewProfileSwitch(`^PROFILE_(?P<clientId>[A-Z]+)$`, "CLI")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	obj := newTestObject(t, "TA01", "P", "")
	err = NewBuilder(WithProfileSwitch(ps), WithLogger(logger)).Build(obj, []recognizer.Action{
		{Kind: recognizer.KindRun, ObjectName: "PROFILE_ACME"},
		{Kind: recognizer.KindRun, ObjectName: "Q"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CLIACME.Q"}, obj.ObjectsUsed.Sorted())
}

func TestBuilder_RejectsSecondPass(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "P", "")
	b := quietBuilder()
	require.NoError(t, b.Build(obj, nil))

	err := b.Build(obj, []recognizer.Action{{Kind: recognizer.KindRun, ObjectName: "Q"}})
	assert.ErrorIs(t, err, ErrAlreadyParsed)
	assert.Empty(t, obj.Statements)
}

func TestParse_Idempotent(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		"RUN QUERY Q1 (F=F1",
		"SAVE DATA AS T1",
		"RUN SET6899_Q",
		"RUN Q2",
		"PRINT REPORT (WIDTH = 133",
		"SELECT * FROM A JOIN B ON A.K = B.K",
	}, "\n")

	parse := func() *ScriptObject {
		obj := newTestObject(t, "TA01", "P", text)
		require.NoError(t, obj.Parse(masking.DefaultMasker(), recognizer.New(), quietBuilder()))
		return obj
	}

	first, second := parse(), parse()
	assert.Equal(t, first.Statements, second.Statements)
	assert.Equal(t, first.Summary(), second.Summary())
	assert.Equal(t, []string{"TA6899.A", "TA6899.B"}, first.SourceTables.Sorted())
}

func TestParse_MasksBeforeRecognition(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "Q", "SELECT * FROM CARDS WHERE PAN = '4111111111111111' AND SSN = '123-45-6789'")
	require.NoError(t, obj.Parse(masking.DefaultMasker(), recognizer.New(), quietBuilder()))

	assert.NotContains(t, obj.SQL, "4111111111111111")
	assert.NotContains(t, obj.SQL, "123-45-6789")
	assert.False(t, masking.DefaultMasker().Matches(obj.SQL))
	assert.Contains(t, obj.RawSQL, "4111111111111111")
	assert.Equal(t, []string{"TA01.CARDS"}, obj.SourceTables.Sorted())

	err := obj.Parse(masking.DefaultMasker(), recognizer.New(), quietBuilder())
	assert.ErrorIs(t, err, ErrAlreadyParsed)
}

func TestParse_NamedOutputCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		expected map[string]string
	}{
		{
			name:     "print query",
			text:     "RUN QUERY Q1\nPRINT QUERY Q1",
			expected: map[string]string{"action": "PRINT", "object": "QUERY", "name": "Q1"},
		},
		{
			name:     "print proc with options",
			text:     "RUN Q1\nPRINT PROC TA01.X (WIDTH = 80",
			expected: map[string]string{"action": "PRINT", "object": "PROC", "name": "TA01.X", "WIDTH": "80"},
		},
		{
			name:     "export table",
			text:     "RUN Q1\nEXPORT TABLE TGT TO 'A.B'",
			expected: map[string]string{"action": "EXPORT", "object": "TABLE", "name": "TGT", "to": "A.B"},
		},
		{
			name:     "unparsed export",
			text:     "RUN Q1\nEXPORT DATA",
			expected: map[string]string{"action": "EXPORT", "object": "DATA"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			obj := newTestObject(t, "TA01", "P", tt.text)
			require.NoError(t, obj.Parse(masking.DefaultMasker(), recognizer.New(), quietBuilder()))

			require.Len(t, obj.Statements, 1)
			assert.Equal(t, tt.expected, obj.Statements[0].FileOutput)
			assert.True(t, obj.FileExport)
			assert.Equal(t, []string{"TA01.Q1"}, obj.ObjectsUsed.Sorted())
		})
	}
}

func TestParse_BareRunQueryNamesNoObject(t *testing.T) {
	t.Parallel()

	obj := newTestObject(t, "TA01", "P", "RUN Q1\nRUN QUERY\nRUN PROC")
	require.NoError(t, obj.Parse(masking.DefaultMasker(), recognizer.New(), quietBuilder()))

	assert.Equal(t, []string{"TA01.Q1"}, obj.ObjectsUsed.Sorted())
	assert.Len(t, obj.Statements, 1)
}
