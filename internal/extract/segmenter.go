package extract

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	startMarker = "QUERY_START"
	endMarker   = "QUERY_END"

	maxLineSize = 16 * 1024 * 1024
)

var (
	queryNameRegex = regexp.MustCompile(`^QUERY\s*:\s*(?P<objectName>\w+\.\w+)$`)
	lastUsedRegex  = regexp.MustCompile(`^LAST USE DATE\s+(?P<lastUsedDate>\d{4}-\d{2}-\d{2})$`)
)

// Record is one framed script carved out of an extract file.
type Record struct {
	// Key is the declared "<db>.<name>".
	Key          string
	LastUsedDate string
	// Text is the buffered script lines joined with newlines.
	Text string
	// Line is the 1-based line number of the end marker.
	Line int
}

// Segmentation is the result of one pass over an extract file.
type Segmentation struct {
	Records []Record
	// Dropped counts end markers reached without a declared name.
	Dropped int
	Lines   int
}

// Segment carves r into per-object records in a single forward pass.
//
// Each record is framed by a "QUERY : <db>.<name>" declaration, an optional
// "LAST USE DATE yyyy-mm-dd" line, QUERY_START, the script lines, and
// QUERY_END. Lines are trimmed. Lines outside a capture that are neither a
// declaration nor a date are ignored.
func Segment(r io.Reader) (*Segmentation, error) {
	var (
		seg          = &Segmentation{}
		objectName   string
		lastUsedDate string
		capturing    bool
		buf          []string
	)

	reset := func() {
		capturing = false
		objectName = ""
		lastUsedDate = ""
		buf = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		seg.Lines++
		line := strings.TrimSpace(scanner.Text())

		if !capturing {
			if m := queryNameRegex.FindStringSubmatch(line); m != nil {
				objectName = m[1]
				continue
			}
			if m := lastUsedRegex.FindStringSubmatch(line); m != nil {
				lastUsedDate = m[1]
			}
		}

		switch line {
		case startMarker:
			capturing = true
			buf = nil
			continue
		case endMarker:
			if objectName != "" {
				seg.Records = append(seg.Records, Record{
					Key:          objectName,
					LastUsedDate: lastUsedDate,
					Text:         strings.Join(buf, "\n"),
					Line:         seg.Lines,
				})
			} else {
				seg.Dropped++
			}
			reset()
			continue
		}

		if capturing && objectName != "" {
			buf = append(buf, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read extract at line %d: %w", seg.Lines+1, err)
	}

	return seg, nil
}
