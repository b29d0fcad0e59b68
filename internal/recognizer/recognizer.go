package recognizer

import (
	"regexp"
	"strings"
)

// Kind identifies the action a statement performs.
type Kind string

const (
	KindRun          Kind = "RUN"
	KindDirectInvoke Kind = "DI"
	KindSave         Kind = "SAVE"
	KindPrint        Kind = "PRINT"
	KindExport       Kind = "EXPORT"
	KindFrom         Kind = "FROM"
	KindJoin         Kind = "JOIN"
	KindOther        Kind = "OTHER"
)

// Action is one recognized statement action in document order.
type Action struct {
	Kind       Kind
	ObjectName string
	FormName   string
	// Fields holds the structured fields captured for PRINT and EXPORT.
	Fields map[string]string
}

// Recognizer turns masked script text into an ordered list of actions.
type Recognizer interface {
	Recognize(text string) []Action
}

const identifier = `[A-Za-z0-9_#$@.]+`

var (
	runPattern    = regexp.MustCompile(`(?i)^(RUN|DI)\s+(?:(?:QUERY|PROC)\s+)?(` + identifier + `)(?:\s*\(\s*(?:F|FORM)\s*=\s*(` + identifier + `))?`)
	savePattern   = regexp.MustCompile(`(?i)^SAVE\s+DATA\s+AS\s+(` + identifier + `)`)
	printPattern  = regexp.MustCompile(`(?i)^PRINT\s+(\w+)(?:\s+(` + identifier + `))?\s*(?:\((.*))?$`)
	exportPattern = regexp.MustCompile(`(?i)^EXPORT\s+(\w+)(?:\s+(` + identifier + `))?\s+TO\s+('[^']*'|"[^"]*"|` + identifier + `)`)

	// commands are leading keywords of procedure statements that carry no
	// inventory meaning.
	commands = map[string]bool{
		"CONNECT": true, "CONVERT": true, "DISPLAY": true, "DRAW": true,
		"EDIT": true, "ERASE": true, "IMPORT": true,
		"INTERACT": true, "LIST": true, "MESSAGE": true,
		"RESET": true, "RUN": true, "SAVE": true, "SHOW": true,
		"START": true, "STATE": true, "TSO": true, "DI": true,
	}

	// objectKeywords name an object kind, never an object.
	objectKeywords = map[string]bool{"QUERY": true, "PROC": true}

	// setCommand distinguishes "SET PROFILE"/"SET GLOBAL" from an UPDATE's
	// SET clause on its own line.
	setCommand = regexp.MustCompile(`(?i)^SET\s+(PROFILE|GLOBAL)\b`)
)

type lineRecognizer struct{}

// New returns the keyword based recognizer for QMF procedure and query text.
func New() Recognizer {
	return &lineRecognizer{}
}

// Recognize implements Recognizer.
func (l *lineRecognizer) Recognize(text string) []Action {
	var actions []Action
	scan := &tableScanner{}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}

		if a, ok := recognizeCommand(line); ok {
			scan.clear()
			actions = append(actions, a)
			continue
		}

		actions = append(actions, scan.feed(line)...)
	}

	return actions
}

// recognizeCommand matches a procedure command at the start of line.
func recognizeCommand(line string) (Action, bool) {
	if m := runPattern.FindStringSubmatch(line); m != nil {
		if objectKeywords[strings.ToUpper(m[2])] {
			// "RUN QUERY" alone runs the query in temporary storage.
			return Action{Kind: KindOther, Fields: map[string]string{"command": strings.ToUpper(m[1])}}, true
		}
		return Action{
			Kind:       Kind(strings.ToUpper(m[1])),
			ObjectName: m[2],
			FormName:   m[3],
		}, true
	}

	if m := savePattern.FindStringSubmatch(line); m != nil {
		return Action{Kind: KindSave, ObjectName: m[1]}, true
	}

	if m := printPattern.FindStringSubmatch(line); m != nil {
		fields := parseOptions(m[3])
		fields["object"] = strings.ToUpper(m[1])
		if m[2] != "" {
			fields["name"] = m[2]
		}
		return Action{Kind: KindPrint, Fields: fields}, true
	}

	if m := exportPattern.FindStringSubmatch(line); m != nil {
		fields := map[string]string{
			"object": strings.ToUpper(m[1]),
			"to":     unquote(m[3]),
		}
		if m[2] != "" {
			fields["name"] = m[2]
		}
		return Action{Kind: KindExport, Fields: fields}, true
	}

	first := strings.ToUpper(strings.Fields(line)[0])
	switch first {
	case "PRINT", "EXPORT":
		// Unparsed output commands still produce output.
		fields := map[string]string{}
		if words := strings.Fields(line); len(words) > 1 {
			fields["object"] = strings.ToUpper(words[1])
		}
		return Action{Kind: Kind(first), Fields: fields}, true
	}

	if commands[first] || setCommand.MatchString(line) {
		return Action{Kind: KindOther, Fields: map[string]string{"command": first}}, true
	}

	return Action{}, false
}

// parseOptions parses "WIDTH = 133, PRINTER = ' '" into upper-cased keys.
func parseOptions(s string) map[string]string {
	fields := map[string]string{}
	s = strings.TrimSuffix(strings.TrimSpace(s), ")")
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		fields[key] = unquote(strings.TrimSpace(value))
	}
	return fields
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// stripComment removes a "--" comment that is not inside a quoted literal.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			return line[:i]
		}
	}
	return line
}
