package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deude27/taverto/internal/config"
)

func TestRenderTable(t *testing.T) {
	t.Parallel()

	header := []string{"NAME", "KIND"}
	data := [][]string{{"TA01.A", "used"}, {"TA01.B", "source"}}
	raw := []map[string]string{{"name": "TA01.A"}, {"name": "TA01.B"}}

	tests := []struct {
		format   string
		contains []string
		absent   []string
	}{
		{TableFormatTable, []string{"NAME", "TA01.A", "source", "+"}, nil},
		{TableFormatCompact, []string{"NAME", "TA01.B"}, []string{"+", "|"}},
		{TableFormatCSV, []string{"TA01.A,used\nTA01.B,source\n"}, []string{"NAME"}},
		{"csv,header", []string{"NAME,KIND\nTA01.A,used\n"}, nil},
		{"table,noheader", []string{"TA01.A"}, []string{"NAME"}},
		{TableFormatJSON, []string{`"name": "TA01.A"`}, []string{"KIND"}},
		{TableFormatYAML, []string{"- name: TA01.A"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, renderTable(&out, tt.format, header, data, raw))
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out.String(), s)
			}
		})
	}

	assert.Error(t, renderTable(&bytes.Buffer{}, "xml", header, data, raw))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"table", "compact", "csv", "csv,header", "csv,noheader", "json", "yaml"} {
		assert.NoError(t, validateFormat(valid), valid)
	}
	for _, invalid := range []string{"", "xml", "csv,bold", "TABLE"} {
		assert.Error(t, validateFormat(invalid), invalid)
	}
}

func TestJoinSetAndYesNo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", joinSet(nil))
	assert.Equal(t, "A, B", joinSet([]string{"A", "B"}))
	assert.Equal(t, "yes", yesNo(true))
	assert.Equal(t, "no", yesNo(false))
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatNumber(tt.in))
	}
}

func TestExecuteConfig(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, executeConfig(&out, config.Default()))
	text := out.String()
	assert.Contains(t, text, "object_type: query")
	assert.Contains(t, text, "summary: summary.json")
	assert.True(t, strings.HasPrefix(text, "extract:"))
}
