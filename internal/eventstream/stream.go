package eventstream

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mrzor/gctrace-enrich/internal/gcevent"
)

// maxLineSize bounds one captured line. bpftrace prints short records, but
// table names can be long.
const maxLineSize = 1 << 20

// ErrTooFewFields is returned for a record with fewer than the four fixed
// fields.
var ErrTooFewFields = errors.New("expected name,phase,tid,timestamp")

// ParseError reports a structurally malformed line. Processing cannot
// continue past it.
type ParseError struct {
	Index int // index of the event the line would have been
	Line  int // 1-based line number in the input
	Text  string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("event %d (line %d): %v", e.Index, e.Line, e.Err)
	}
	return fmt.Sprintf("event %d (line %d): %v: %q", e.Index, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader reads trace events from a bpftrace text capture.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	index   int
	skipped int
}

// NewReader creates a Reader over a capture log.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event, io.EOF at the end of the input, or a
// *ParseError for a malformed or unreadable line.
func (r *Reader) Next() (gcevent.Event, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if skipLine(text) {
			r.skipped++
			continue
		}

		ev, err := parseLine(text)
		if err != nil {
			return gcevent.Event{}, &ParseError{Index: r.index, Line: r.line, Text: text, Err: err}
		}
		r.index++
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return gcevent.Event{}, &ParseError{Index: r.index, Line: r.line + 1, Err: err}
	}
	return gcevent.Event{}, io.EOF
}

// Skipped returns how many non-event lines have been passed over.
func (r *Reader) Skipped() int {
	return r.skipped
}

// skipLine reports banners, comments and blank lines.
func skipLine(text string) bool {
	return text == "" || strings.HasPrefix(text, "#") || !strings.Contains(text, ",")
}

func parseLine(text string) (gcevent.Event, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	fields, err := cr.Read()
	if err != nil {
		return gcevent.Event{}, err
	}
	if len(fields) < 4 {
		return gcevent.Event{}, ErrTooFewFields
	}

	name := strings.TrimSpace(fields[0])
	if name == "" {
		return gcevent.Event{}, errors.New("empty event name")
	}
	phase, err := gcevent.ParsePhase(strings.TrimSpace(fields[1]))
	if err != nil {
		return gcevent.Event{}, err
	}
	tid, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return gcevent.Event{}, fmt.Errorf("invalid tid: %w", err)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return gcevent.Event{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	var args gcevent.Args
	if len(fields) > 4 {
		args = gcevent.Args(fields[4:])
	}
	return gcevent.Event{
		Name:      name,
		Phase:     phase,
		ThreadID:  tid,
		Timestamp: ts,
		Args:      args,
	}, nil
}
