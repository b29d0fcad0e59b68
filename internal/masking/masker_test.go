package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "card number contiguous",
			input:    "WHERE CARD_NO = '4111111111111111'",
			expected: "WHERE CARD_NO = 'XXXXXXXXX'",
		},
		{
			name:     "card number grouped with dashes",
			input:    "CARD 4111-1111-1111-1111 END",
			expected: "CARD XXXXXXXXX END",
		},
		{
			name:     "card number grouped with spaces",
			input:    "CARD 5500 0000 0000 0004",
			expected: "CARD XXXXXXXXX",
		},
		{
			name:     "ssn dashed",
			input:    "AND SSN = '123-45-6789'",
			expected: "AND SSN = 'XXXXXXXXX'",
		},
		{
			name:     "ssn contiguous",
			input:    "AND SSN = 123456789",
			expected: "AND SSN = XXXXXXXXX",
		},
		{
			name:     "identifiers with digits untouched",
			input:    "RUN TA6899.ROD_RUNTEST_P",
			expected: "RUN TA6899.ROD_RUNTEST_P",
		},
		{
			name:     "short numbers untouched",
			input:    "PRINT REPORT (WIDTH = 133",
			expected: "PRINT REPORT (WIDTH = 133",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, DefaultMasker().Mask(tt.input))
		})
	}
}

func TestMasker_NoSensitiveDataSurvives(t *testing.T) {
	t.Parallel()

	m := DefaultMasker()
	input := "SELECT * FROM T WHERE A='4111111111111111' OR B='123-45-6789' OR C=987654321"

	masked := m.Mask(input)
	assert.False(t, m.Matches(masked))
	assert.True(t, m.Matches(input))
}

func TestMasker_CustomToken(t *testing.T) {
	t.Parallel()

	m := New("<SPI>")
	assert.Equal(t, "<SPI>", m.Token())
	assert.Equal(t, "SSN <SPI>", m.Mask("SSN 123-45-6789"))
}

func TestNew_EmptyTokenUsesDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultToken, New("").Token())
}
