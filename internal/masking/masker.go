package masking

import "regexp"

// DefaultToken replaces every redacted substring.
const DefaultToken = "XXXXXXXXX"

var (
	// creditCardPattern matches 13-16 digit card numbers, optionally grouped
	// in fours with single spaces or dashes.
	creditCardPattern = regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{1,4}\b`)

	// ssnPattern matches ddd-dd-dddd, ddd dd dddd and nine contiguous digits.
	ssnPattern = regexp.MustCompile(`\b\d{3}[ -]?\d{2}[ -]?\d{4}\b`)
)

// Masker redacts sensitive numeric literals from script text before parsing.
// Matching is purely syntactic: false positives and negatives are accepted.
type Masker struct {
	token    string
	patterns []*regexp.Regexp
}

// New creates a Masker using the given redaction token.
// An empty token falls back to DefaultToken.
func New(token string) *Masker {
	if token == "" {
		token = DefaultToken
	}
	return &Masker{
		token: token,
		// Card numbers first so a 16 digit number is not split by the SSN rule.
		patterns: []*regexp.Regexp{creditCardPattern, ssnPattern},
	}
}

// DefaultMasker returns a Masker using DefaultToken.
func DefaultMasker() *Masker {
	return New(DefaultToken)
}

// Token returns the redaction token.
func (m *Masker) Token() string {
	return m.token
}

// Mask returns text with every sensitive match replaced by the token.
// It never fails; text without matches is returned unchanged.
func (m *Masker) Mask(text string) string {
	for _, p := range m.patterns {
		text = p.ReplaceAllLiteralString(text, m.token)
	}
	return text
}

// Matches reports whether text contains any sensitive pattern.
func (m *Masker) Matches(text string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
