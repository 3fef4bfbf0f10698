package scan

import (
	"fmt"
	"log/slog"
)

// ErrorKind classifies scan diagnostics. None of them stop the scan.
type ErrorKind int

const (
	MalformedOpener   ErrorKind = iota // lead byte followed by a reserved marker
	UnclosedDirective                  // directive ended by the wrong closer or by end of input
	LiteralOverflow                    // integer literal outside the 32-bit range
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedOpener:
		return "MalformedOpener"
	case UnclosedDirective:
		return "UnclosedDirective"
	case LiteralOverflow:
		return "LiteralOverflow"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a diagnostic produced by the Scanner. Its message always starts
// with Label: "unexpected character", "expects <marker>" or
// "only 32-bit numbers allowed".
type Error struct {
	Kind   ErrorKind
	Label  string
	Line   int
	Column int // 1-based byte column
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (line %d, column %d)", e.Label, e.Line, e.Column)
	}
	return fmt.Sprintf("%s: %s (line %d, column %d)", e.Label, e.Detail, e.Line, e.Column)
}

const (
	labelUnexpected = "unexpected character"
	labelOverflow   = "only 32-bit numbers allowed"
)

func labelExpects(marker byte) string {
	return "expects " + string(marker)
}

// ErrorSink receives the diagnostics of a Scanner. The Scanner clears it at
// the start of every call, so LastMessage reflects only the latest call.
type ErrorSink interface {
	Report(err error)
	LastMessage() string
	Clear()
}

// Diagnostics is an ErrorSink that keeps the most recent error. If Logger is
// set, every report is also logged at debug level.
type Diagnostics struct {
	Logger *slog.Logger

	last error
}

func (d *Diagnostics) Report(err error) {
	d.last = err
	if d.Logger != nil {
		d.Logger.Debug("scan diagnostic", "error", err)
	}
}

// Last returns the most recent error, or nil.
func (d *Diagnostics) Last() error { return d.last }

func (d *Diagnostics) LastMessage() string {
	if d.last == nil {
		return ""
	}
	return d.last.Error()
}

func (d *Diagnostics) Clear() { d.last = nil }

// Recorder is an ErrorSink that also keeps a log of every error reported.
// Clear forgets the last error but not the log.
type Recorder struct {
	Diagnostics

	Errors []error
}

func (r *Recorder) Report(err error) {
	r.Diagnostics.Report(err)
	r.Errors = append(r.Errors, err)
}

var (
	_ ErrorSink = &Diagnostics{}
	_ ErrorSink = &Recorder{}
)
