package scan

// The scanner classifies template source, one line at a time, into TEXT
// blocks and the two directive forms, code {% ... %} and echo {= ... =}
// (with the default Syntax). A directive may span several lines; the open
// directive is carried between Scan calls.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jrziviani/volt/pkg/value"
)

// State is the continuation state carried from one Scan call to the next.
type State int

const (
	Outside State = iota // accumulating literal text
	InCode               // inside an unterminated code directive
	InEcho               // inside an unterminated echo directive
)

func (s State) String() string {
	switch s {
	case Outside:
		return "OUTSIDE"
	case InCode:
		return "IN_CODE"
	case InEcho:
		return "IN_ECHO"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// directive is the partial content of the directive being scanned.
type directive struct {
	kind  MetaType
	line  int // line of the opener
	col   int // 1-based column of the opener
	begin int // stream offset of the opener
	idx   int // index of the opener in the current line, -1 if opened on an earlier line
	body  []byte

	quote   byte // open string quote, 0 outside strings; never spans lines
	escaped bool
}

// Scanner turns template lines into Metainfo. It is not safe for concurrent
// use; independent Scanners share nothing.
type Scanner struct {
	sink   ErrorSink
	syntax Syntax

	state State
	dir   directive

	line int // number of the current line, 1-based
	base int // stream offset of src[0]
	next int // stream offset of the next line

	src  string
	i    int
	text int // start of the pending TEXT run in src

	meta Metainfo
}

// New returns a Scanner using DefaultSyntax that reports to sink. A nil
// sink is replaced by a fresh Diagnostics.
func New(sink ErrorSink) *Scanner {
	if sink == nil {
		sink = &Diagnostics{}
	}
	return &Scanner{sink: sink, syntax: DefaultSyntax()}
}

// NewWithSyntax is like New but scans with the given delimiter table.
func NewWithSyntax(sink ErrorSink, syntax Syntax) (*Scanner, error) {
	if err := syntax.Validate(); err != nil {
		return nil, fmt.Errorf("invalid syntax: %w", err)
	}
	s := New(sink)
	s.syntax = syntax
	return s, nil
}

// State returns the continuation state left by the last call.
func (s *Scanner) State() State { return s.state }

// Metainfo returns the blocks found by the last Scan or Finish call. The
// slice must not be modified.
func (s *Scanner) Metainfo() Metainfo { return s.meta }

// Reset discards all state so the Scanner can start a new stream.
func (s *Scanner) Reset() {
	*s = Scanner{sink: s.sink, syntax: s.syntax}
}

// Scan consumes the next source line, without its newline. Errors go to the
// sink, which is cleared first; Scan always classifies the whole line.
func (s *Scanner) Scan(line string) {
	s.sink.Clear()
	s.meta = nil
	s.line++
	s.base = s.next
	s.next = s.base + len(line) + 1
	s.src, s.i, s.text = line, 0, 0

	if s.state != Outside {
		s.dir.idx = -1
		s.dir.body = append(s.dir.body, '\n')
	}

	for s.i < len(s.src) {
		if s.state == Outside {
			s.scanOutside()
		} else {
			s.scanInside()
		}
	}

	if s.state != Outside {
		if s.dir.idx >= 0 {
			s.flushText(s.dir.idx)
		}
		return
	}
	if s.text < len(s.src) || len(s.meta) == 0 {
		s.flushText(len(s.src))
		if len(s.meta) == 0 {
			s.meta = append(s.meta, Metadata{Type: Text, Line: s.line, Begin: s.base, End: s.base})
		}
	}
}

// Finish ends the stream. A directive still open is reported as unclosed
// and returned, opener included, as a single TEXT block.
func (s *Scanner) Finish() {
	s.sink.Clear()
	s.meta = nil
	if s.state == Outside {
		return
	}
	d := &s.dir
	s.sink.Report(&Error{
		Kind:   UnclosedDirective,
		Label:  labelExpects(s.syntax.marker(d.kind)),
		Line:   d.line,
		Column: d.col,
		Detail: "reached end of input",
	})
	raw := s.syntax.opener(d.kind) + string(d.body)
	s.meta = Metainfo{{Type: Text, Line: d.line, Begin: d.begin, End: d.begin + len(raw), Content: raw}}
	s.leave()
}

func (s *Scanner) scanOutside() {
	if s.src[s.i] != s.syntax.Lead || s.i+1 >= len(s.src) {
		s.i++
		return
	}
	m := s.src[s.i+1]
	if kind, ok := s.syntax.kindOf(m); ok {
		s.open(kind)
		return
	}
	if s.syntax.reserved(m) {
		s.report(MalformedOpener, labelUnexpected, s.i+2, fmt.Sprintf("%q after %q", m, s.syntax.Lead))
		if m == s.syntax.Lead {
			s.i++ // the marker may lead the next opener
		} else {
			s.i += 2
		}
		return
	}
	s.i++
}

// quoteCloses reports whether the quote at s.i is matched later on the
// current line. An unmatched quote is plain content.
func (s *Scanner) quoteCloses() bool {
	q := s.src[s.i]
	for j := s.i + 1; j < len(s.src); j++ {
		switch s.src[j] {
		case '\\':
			j++
		case q:
			return true
		}
	}
	return false
}

func (s *Scanner) scanInside() {
	d := &s.dir
	c := s.src[s.i]
	switch {
	case d.quote != 0:
		switch {
		case d.escaped:
			d.escaped = false
		case c == '\\':
			d.escaped = true
		case c == d.quote:
			d.quote = 0
		}
	case (c == '"' || c == '\'') && s.quoteCloses():
		d.quote = c
	case s.i+1 < len(s.src) && s.src[s.i+1] == s.syntax.Trail:
		if kind, ok := s.syntax.kindOf(c); ok {
			if kind == d.kind {
				s.close()
			} else {
				s.abandon(c)
			}
			return
		}
	}
	d.body = append(d.body, c)
	s.i++
}

func (s *Scanner) open(kind MetaType) {
	s.dir = directive{
		kind:  kind,
		line:  s.line,
		col:   s.i + 1,
		begin: s.base + s.i,
		idx:   s.i,
	}
	if kind == Echo {
		s.state = InEcho
	} else {
		s.state = InCode
	}
	s.i += 2
}

func (s *Scanner) close() {
	d := &s.dir
	if d.idx >= 0 {
		s.flushText(d.idx)
	}
	end := s.i + 2
	content := string(d.body)
	toks := tokenize(content, d.begin+2)
	s.checkLiterals(content, toks)
	s.meta = append(s.meta, Metadata{
		Type:    d.kind,
		Line:    d.line,
		Begin:   d.begin,
		End:     s.base + end,
		Content: content,
		Tokens:  toks,
	})
	s.leave()
	s.i, s.text = end, end
}

// abandon drops the open directive after a closer of the other kind. The
// source it covered stays in the pending TEXT run.
func (s *Scanner) abandon(found byte) {
	d := &s.dir
	s.report(UnclosedDirective, labelExpects(s.syntax.marker(d.kind)), s.i+1,
		fmt.Sprintf("found %q", string([]byte{found, s.syntax.Trail})))
	s.leave()
	s.i += 2
}

func (s *Scanner) leave() {
	s.state = Outside
	s.dir = directive{}
}

func (s *Scanner) flushText(upto int) {
	if upto <= s.text {
		return
	}
	s.meta = append(s.meta, Metadata{
		Type:    Text,
		Line:    s.line,
		Begin:   s.base + s.text,
		End:     s.base + upto,
		Content: s.src[s.text:upto],
	})
	s.text = upto
}

// checkLiterals reports every integer literal of a closed directive that
// does not fit 32 bits. A minus that does not follow an operand makes the
// literal negative.
func (s *Scanner) checkLiterals(content string, toks []Token) {
	for i, tok := range toks {
		if tok.Kind != TokenNumber {
			continue
		}
		negative := i > 0 && toks[i-1].Text == "-" && (i == 1 || !toks[i-2].isOperand())
		_, err := value.ParseLiteral(tok.Text, negative)
		if !errors.Is(err, value.ErrLiteralRange) {
			continue
		}
		text := tok.Text
		if negative {
			text = "-" + text
		}
		line, col := s.position(content, tok.Pos)
		s.sink.Report(&Error{Kind: LiteralOverflow, Label: labelOverflow, Line: line, Column: col, Detail: text})
	}
}

// position maps a stream offset inside the open directive's content to a
// line and 1-based column.
func (s *Scanner) position(content string, pos int) (line, col int) {
	d := &s.dir
	rel := pos - (d.begin + 2)
	prefix := content[:rel]
	nl := strings.Count(prefix, "\n")
	if nl == 0 {
		return d.line, d.col + 2 + rel
	}
	return d.line + nl, rel - strings.LastIndexByte(prefix, '\n')
}

func (s *Scanner) report(kind ErrorKind, label string, col int, detail string) {
	s.sink.Report(&Error{Kind: kind, Label: label, Line: s.line, Column: col, Detail: detail})
}
