package inventory

import (
	"fmt"
	"regexp"
)

const (
	// DefaultProfilePattern matches the SETnnnn_Q queries that switch the
	// client profile. The clientId group holds the identifier.
	DefaultProfilePattern = `^SET(?P<clientId>[0-9]*)_Q$`

	// DefaultProfilePrefix is prepended to the client id to form the new
	// active database.
	DefaultProfilePrefix = "TA"

	clientIDGroup = "clientId"
)

// ProfileSwitch recognizes RUN targets that change the active database.
type ProfileSwitch struct {
	pattern *regexp.Regexp
	group   int
	prefix  string
}

// NewProfileSwitch compiles pattern, which must contain a named group
// "clientId", and returns a switch that activates prefix+clientId.
func NewProfileSwitch(pattern, prefix string) (*ProfileSwitch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid profile pattern %q: %w", pattern, err)
	}
	group := re.SubexpIndex(clientIDGroup)
	if group < 0 {
		return nil, fmt.Errorf("invalid profile pattern %q: missing (?P<%s>...) group", pattern, clientIDGroup)
	}
	return &ProfileSwitch{pattern: re, group: group, prefix: prefix}, nil
}

// DefaultProfileSwitch returns the switch for SETnnnn_Q -> TAnnnn.
func DefaultProfileSwitch() *ProfileSwitch {
	ps, err := NewProfileSwitch(DefaultProfilePattern, DefaultProfilePrefix)
	if err != nil {
		panic(err)
	}
	return ps
}

// Match reports whether the resolved name is a profile switch and returns
// the client id it carries. The id may be empty when the pattern matches
// without capturing one.
func (p *ProfileSwitch) Match(resolved string) (clientID string, matched bool) {
	m := p.pattern.FindStringSubmatch(LastSegment(resolved))
	if m == nil {
		return "", false
	}
	return m[p.group], true
}

// Database returns the active database for clientID.
func (p *ProfileSwitch) Database(clientID string) string {
	return p.prefix + clientID
}
