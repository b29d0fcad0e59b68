package recognizer

import "strings"

type scanState int

const (
	stateIdle scanState = iota
	stateExpectTable
	stateAfterTable
)

// clauseKeywords end a table reference (and its alias) in a FROM list.
var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "ON": true,
	"USING": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "OUTER": true, "CROSS": true, "FETCH": true,
	"WITH": true, "FOR": true, "SELECT": true, "LIMIT": true,
	"OPTIMIZE": true, "SET": true, "VALUES": true,
}

// tableScanner finds table references after FROM and JOIN. Its state
// carries across lines so "FROM" on one line and the table on the next
// still yield a reference.
type tableScanner struct {
	state scanState
	kind  Kind
	// parens holds one entry per open parenthesis, true for a subquery or
	// table expression.
	parens []bool
	opened bool
}

func (s *tableScanner) reset() {
	s.state = stateIdle
	s.kind = ""
}

// clear forgets all state, including open parentheses.
func (s *tableScanner) clear() {
	s.reset()
	s.parens = s.parens[:0]
	s.opened = false
}

// inCall reports whether the innermost open parenthesis is an expression
// such as EXTRACT(YEAR FROM D) rather than a subquery.
func (s *tableScanner) inCall() bool {
	return len(s.parens) > 0 && !s.parens[len(s.parens)-1]
}

// track records parenthesis nesting for tok.
func (s *tableScanner) track(tok, word string) {
	opened := s.opened
	s.opened = false

	switch {
	case tok == "(":
		// A parenthesis in table position opens a table expression.
		s.parens = append(s.parens, s.state == stateExpectTable)
		s.opened = true
	case tok == ")":
		if len(s.parens) > 0 {
			s.parens = s.parens[:len(s.parens)-1]
		}
	case opened && (word == "SELECT" || word == "WITH"):
		s.parens[len(s.parens)-1] = true
	}
}

// feed scans one SQL line and returns the FROM/JOIN actions found in it.
func (s *tableScanner) feed(line string) []Action {
	var actions []Action

	for _, tok := range tokenize(line) {
		word := strings.ToUpper(tok)
		s.track(tok, word)

		switch word {
		case "FROM", "JOIN":
			if s.inCall() {
				// FROM inside EXTRACT, TRIM or SUBSTRING names no table.
				s.reset()
				continue
			}
		}

		switch word {
		case "FROM":
			s.state, s.kind = stateExpectTable, KindFrom
			continue
		case "JOIN":
			s.state, s.kind = stateExpectTable, KindJoin
			continue
		}

		switch s.state {
		case stateExpectTable:
			switch {
			case tok == "(":
				// Nested table expression; keep expecting the first table.
			case word == "SELECT" || word == "WITH" || word == "VALUES":
				// Subquery; its own FROM is picked up later.
				s.reset()
			case word == "LATERAL" || word == "TABLE" || word == "FINAL" || word == "NEW" || word == "OLD":
				s.reset()
			case isIdentifier(tok):
				actions = append(actions, Action{Kind: s.kind, ObjectName: tok})
				s.state = stateAfterTable
			default:
				s.reset()
			}

		case stateAfterTable:
			switch {
			case tok == ",":
				if s.kind == KindFrom {
					s.state = stateExpectTable
				} else {
					s.reset()
				}
			case tok == ")" || tok == ";":
				s.reset()
			case clauseKeywords[word]:
				s.reset()
			}
		}
	}

	return actions
}

// tokenize splits a line into identifiers, quoted literals and single
// punctuation characters.
func tokenize(line string) []string {
	var tokens []string
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(line[i+1:], c)
			if end < 0 {
				tokens = append(tokens, line[i:])
				return tokens
			}
			tokens = append(tokens, line[i:i+end+2])
			i += end + 2
		case isIdentByte(c):
			start := i
			for i < len(line) && isIdentByte(line[i]) {
				i++
			}
			tokens = append(tokens, line[start:i])
		default:
			tokens = append(tokens, string(c))
			i++
		}
	}
	return tokens
}

func isIdentByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
		c == '_' || c == '#' || c == '$' || c == '@' || c == '.'
}

// isIdentifier reports whether tok names a table: it starts with a letter
// or national character and is not a bare number.
func isIdentifier(tok string) bool {
	if tok == "" || !isIdentByte(tok[0]) {
		return false
	}
	c := tok[0]
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_' || c == '#' || c == '$' || c == '@'
}
