package transform

import (
	"regexp"
	"strings"
)

// Transformer translates DB2 SQL text into another dialect.
type Transformer interface {
	Transform(sql string) (string, error)
}

type rule struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// defaultRules rewrite the DB2 idioms that show up most in QMF queries.
// They are textual; anything they do not cover passes through unchanged.
var defaultRules = []rule{
	{"current date", regexp.MustCompile(`(?i)\bCURRENT\s+DATE\b`), "current_date"},
	{"current timestamp", regexp.MustCompile(`(?i)\bCURRENT\s+TIMESTAMP\b`), "current_timestamp"},
	{"current time", regexp.MustCompile(`(?i)\bCURRENT\s+TIME\b`), "current_time"},
	{"fetch first", regexp.MustCompile(`(?i)\bFETCH\s+FIRST\s+(\d+)\s+ROWS?\s+ONLY\b`), "LIMIT $1"},
	{"fetch first one", regexp.MustCompile(`(?i)\bFETCH\s+FIRST\s+ROW\s+ONLY\b`), "LIMIT 1"},
	{"isolation", regexp.MustCompile(`(?i)\s+WITH\s+(UR|CS|RS|RR)\b`), ""},
	{"optimize", regexp.MustCompile(`(?i)\s+OPTIMIZE\s+FOR\s+\d+\s+ROWS?\b`), ""},
	{"dummy table", regexp.MustCompile(`(?i)\s+FROM\s+SYSIBM\.SYSDUMMY1\b`), ""},
	{"value", regexp.MustCompile(`(?i)\bVALUE\s*\(`), "COALESCE("},
}

// RuleTransformer applies an ordered list of textual rewrite rules.
type RuleTransformer struct {
	rules []rule
}

// NewRuleTransformer returns a transformer with the DB2 to Presto rules.
func NewRuleTransformer() *RuleTransformer {
	return &RuleTransformer{rules: defaultRules}
}

// Transform implements Transformer.
func (r *RuleTransformer) Transform(sql string) (string, error) {
	out := sql
	for _, rl := range r.rules {
		out = rl.pattern.ReplaceAllString(out, rl.replace)
	}
	return strings.TrimSpace(out), nil
}

// Rules returns the names of the rules in application order.
func (r *RuleTransformer) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rl := range r.rules {
		names[i] = rl.name
	}
	return names
}
