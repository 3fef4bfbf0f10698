package scan

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func readLines(t *testing.T, name string) []string {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	return lines
}

var labels = []string{
	"only 32-bit numbers allowed",
	"unexpected character",
	"expects =",
	"expects %",
}

func hasLabel(msg string) bool {
	for _, l := range labels {
		if strings.HasPrefix(msg, l) {
			return true
		}
	}
	return false
}

func TestInvalidToTextBlocks(t *testing.T) {
	sink := &Diagnostics{}
	s := New(sink)
	for i, line := range readLines(t, "block.1") {
		s.Scan(line)
		data := s.Metainfo()
		if len(data) != 1 || data[0].Type != Text {
			t.Errorf("line %d %q: got %v, want [TEXT]", i+1, line, data.Types())
		}
		if s.State() != Outside {
			t.Errorf("line %d %q: state %v, want OUTSIDE", i+1, line, s.State())
		}
		if msg := sink.LastMessage(); msg != "" && !hasLabel(msg) {
			t.Errorf("line %d %q: unexpected diagnostic %q", i+1, line, msg)
		}
	}
}

func TestValidAndInvalidBlocks(t *testing.T) {
	expected := []MetaType{
		Code, Code, Code, Text, Code,
		Text, Text, Text, Text, Text,
		Text, Echo, Code, Code, Code,
		Code, Text, Text, Text, Text,
		Text, Code, Echo, Echo, Echo,
	}
	errorsExpected := []string{
		"", "", "", "only 32-bit numbers allowed", "",
		"unexpected character", "", "", "", "",
		"", "", "", "", "",
		"", "", "expects =", "expects %", "expects =",
		"only 32-bit numbers allowed", "", "", "", "",
	}

	sink := &Diagnostics{}
	s := New(sink)
	lines := readLines(t, "block.2")
	if len(lines) != len(expected) {
		t.Fatalf("fixture has %d lines, want %d", len(lines), len(expected))
	}
	for i, line := range lines {
		s.Scan(line)
		data := s.Metainfo()
		if len(data) == 0 {
			t.Fatalf("line %d %q: empty metainfo", i+1, line)
		}
		if data[0].Type != expected[i] {
			t.Errorf("line %d %q: first block %v, want %v", i+1, line, data[0].Type, expected[i])
		}
		msg := sink.LastMessage()
		if errorsExpected[i] == "" {
			if msg != "" {
				t.Errorf("line %d %q: unexpected error %q", i+1, line, msg)
			}
			continue
		}
		if !strings.HasPrefix(msg, errorsExpected[i]) {
			t.Errorf("line %d %q: error %q, want prefix %q", i+1, line, msg, errorsExpected[i])
		}
	}
}

func TestFindCodeBetweenTrash(t *testing.T) {
	expected := [][]MetaType{
		{Text, Echo, Text, Code},
		{Code},
		{Code},
		{Text, Code, Text},
		{Text, Echo, Text},
		{Echo, Text},
		{Code, Text},
		{Text, Echo, Text},
		{Text, Code, Text},
		{Text, Code, Text},
		{Text},
		{Text},
		{Text},
		{},
		{Code, Text, Echo},
	}
	s := New(nil)
	lines := readLines(t, "block.3")
	if len(lines) != len(expected) {
		t.Fatalf("fixture has %d lines, want %d", len(lines), len(expected))
	}
	for i, line := range lines {
		s.Scan(line)
		got := s.Metainfo().Types()
		if !reflect.DeepEqual(got, expected[i]) {
			t.Errorf("line %d %q: got %v, want %v", i+1, line, got, expected[i])
		}
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  []MetaType
		label string
	}{
		{name: "plain text", line: "plain text, no directives", want: []MetaType{Text}},
		{name: "code", line: "{% if x %}", want: []MetaType{Code}},
		{name: "wide literal", line: "{% x = 8589934592 %}", want: []MetaType{Code}, label: "only 32-bit numbers allowed"},
		{name: "mixed", line: "a {= b =} c {% d %}", want: []MetaType{Text, Echo, Text, Code}},
		{name: "echo without closer", line: "{= name %}", want: []MetaType{Text}, label: "expects ="},
		{name: "binary minus", line: "{= a - 2147483649 =}", want: []MetaType{Echo}},
		{name: "negative overflow", line: "{= (-2147483649) =}", want: []MetaType{Echo}, label: "only 32-bit numbers allowed"},
		{name: "opener inside directive", line: "{% a {% b %}", want: []MetaType{Code}},
		{name: "escaped quote", line: `{= "x\"%}" =}`, want: []MetaType{Echo}},
		{name: "foreign comment", line: "{# note #}", want: []MetaType{Text}, label: "unexpected character"},
		{name: "doubled lead before echo", line: "{{= a =}", want: []MetaType{Text, Echo}, label: "unexpected character"},
		{name: "doubled lead before code", line: "x {{% y %} z", want: []MetaType{Text, Code, Text}, label: "unexpected character"},
		{name: "foreign comment before code", line: "{#{% c %}", want: []MetaType{Text, Code}, label: "unexpected character"},
		{name: "apostrophe", line: "{= don't =}", want: []MetaType{Echo}},
		{name: "unmatched double quote", line: `{% say "hi %} tail`, want: []MetaType{Code, Text}},
		{name: "digit separators", line: "{% x = 99_999_999_999 %}", want: []MetaType{Code}, label: "only 32-bit numbers allowed"},
		{name: "digit separators fit", line: "{% x = 4_294_967_295 %}", want: []MetaType{Code}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &Diagnostics{}
			s := New(sink)
			s.Scan(tt.line)
			if got := s.Metainfo().Types(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			msg := sink.LastMessage()
			if tt.label == "" && msg != "" {
				t.Fatalf("unexpected error %q", msg)
			}
			if !strings.HasPrefix(msg, tt.label) {
				t.Fatalf("error %q, want prefix %q", msg, tt.label)
			}
		})
	}
}

func TestContinuation(t *testing.T) {
	s := New(nil)
	s.Scan("head {= a")
	if s.State() != InEcho {
		t.Fatalf("state %v, want IN_ECHO", s.State())
	}
	if got := s.Metainfo().Types(); !reflect.DeepEqual(got, []MetaType{Text}) {
		t.Fatalf("opening line: got %v, want [TEXT]", got)
	}

	s.Scan("  + b")
	if s.State() != InEcho || len(s.Metainfo()) != 0 {
		t.Fatalf("middle line: state %v, blocks %v", s.State(), s.Metainfo().Types())
	}

	s.Scan("=} tail {% c %}")
	data := s.Metainfo()
	if got := data.Types(); !reflect.DeepEqual(got, []MetaType{Echo, Text, Code}) {
		t.Fatalf("closing line: got %v", got)
	}
	if data[0].Content != " a\n  + b\n" {
		t.Fatalf("echo content %q", data[0].Content)
	}
	if data[0].Line != 1 {
		t.Fatalf("echo line %d, want 1", data[0].Line)
	}
	// "head {= a\n  + b\n=}"
	if data[0].Begin != 5 || data[0].End != 18 {
		t.Fatalf("echo range [%d,%d), want [5,18)", data[0].Begin, data[0].End)
	}
	if s.State() != Outside {
		t.Fatalf("state %v, want OUTSIDE", s.State())
	}
}

func TestContinuationRecovery(t *testing.T) {
	sink := &Diagnostics{}
	s := New(sink)
	s.Scan("{% a")
	s.Scan("b =} rest")
	if got := s.Metainfo().Types(); !reflect.DeepEqual(got, []MetaType{Text}) {
		t.Fatalf("got %v, want [TEXT]", got)
	}
	if !strings.HasPrefix(sink.LastMessage(), "expects %") {
		t.Fatalf("error %q, want expects %%", sink.LastMessage())
	}
	if s.Metainfo()[0].Content != "b =} rest" {
		t.Fatalf("text content %q", s.Metainfo()[0].Content)
	}

	s.Scan("ok")
	if sink.LastMessage() != "" {
		t.Fatalf("stale error %q", sink.LastMessage())
	}
}

func TestQuotesDoNotSpanLines(t *testing.T) {
	sink := &Diagnostics{}
	s := New(sink)
	s.Scan(`{= "a`)
	s.Scan(`b" =}`)
	data := s.Metainfo()
	if got := data.Types(); !reflect.DeepEqual(got, []MetaType{Echo}) {
		t.Fatalf("got %v, want [ECHO]", got)
	}
	toks := data[0].Tokens
	if len(toks) != 4 || toks[0].Text != `"` || toks[0].Kind != TokenOp || toks[3].Text != `"` {
		t.Fatalf("tokens %#v", toks)
	}
	if sink.LastMessage() != "" {
		t.Fatalf("unexpected error %q", sink.LastMessage())
	}
}

func TestUnmatchedQuoteKeepsScanning(t *testing.T) {
	tests := []struct {
		line string
		want []MetaType
	}{
		{line: "{= don't =}", want: []MetaType{Echo}},
		{line: "plain text", want: []MetaType{Text}},
		{line: "{% x = 1 %}", want: []MetaType{Code}},
		{line: "more", want: []MetaType{Text}},
	}
	sink := &Diagnostics{}
	s := New(sink)
	for _, tt := range tests {
		s.Scan(tt.line)
		if got := s.Metainfo().Types(); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%q: got %v, want %v", tt.line, got, tt.want)
		}
		if s.State() != Outside {
			t.Fatalf("%q: state %v, want OUTSIDE", tt.line, s.State())
		}
		if sink.LastMessage() != "" {
			t.Fatalf("%q: unexpected error %q", tt.line, sink.LastMessage())
		}
	}
}

func TestOffsets(t *testing.T) {
	s := New(nil)
	s.Scan("ab {= x =}")
	data := s.Metainfo()
	want := Metainfo{
		{Type: Text, Line: 1, Begin: 0, End: 3, Content: "ab "},
		{Type: Echo, Line: 1, Begin: 3, End: 10, Content: " x ", Tokens: []Token{{Kind: TokenIdent, Text: "x", Pos: 6}}},
	}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("got %#v\nwant %#v", data, want)
	}

	s.Scan("{%y%}")
	data = s.Metainfo()
	if data[0].Line != 2 || data[0].Begin != 11 || data[0].End != 16 {
		t.Fatalf("second line block %#v", data[0])
	}
}

func TestEmptyLine(t *testing.T) {
	s := New(nil)
	s.Scan("")
	data := s.Metainfo()
	if len(data) != 1 || data[0].Type != Text || data[0].Content != "" {
		t.Fatalf("got %#v, want one empty TEXT", data)
	}
}

func TestErrorPosition(t *testing.T) {
	sink := &Diagnostics{}
	s := New(sink)
	s.Scan("ab {% x = 1")
	s.Scan("  + 4294967296 %}")
	var serr *Error
	if !errors.As(sink.Last(), &serr) {
		t.Fatalf("last error %v is not *Error", sink.Last())
	}
	if serr.Kind != LiteralOverflow || serr.Line != 2 || serr.Column != 5 {
		t.Fatalf("error %#v", serr)
	}
	if serr.Error() != "only 32-bit numbers allowed: 4294967296 (line 2, column 5)" {
		t.Fatalf("message %q", serr.Error())
	}

	s.Scan("{{")
	if !errors.As(sink.Last(), &serr) || serr.Kind != MalformedOpener || serr.Column != 2 {
		t.Fatalf("error %v", sink.Last())
	}
}

func TestFinish(t *testing.T) {
	sink := &Diagnostics{}
	s := New(sink)
	s.Scan("x {% if a")
	s.Scan("b")
	s.Finish()
	data := s.Metainfo()
	if len(data) != 1 || data[0].Type != Text || data[0].Content != "{% if a\nb" {
		t.Fatalf("got %#v", data)
	}
	if data[0].Begin != 2 || data[0].End != 11 {
		t.Fatalf("range [%d,%d), want [2,11)", data[0].Begin, data[0].End)
	}
	if !strings.HasPrefix(sink.LastMessage(), "expects %") {
		t.Fatalf("error %q", sink.LastMessage())
	}
	if s.State() != Outside {
		t.Fatalf("state %v", s.State())
	}

	s.Finish()
	if len(s.Metainfo()) != 0 || sink.LastMessage() != "" {
		t.Fatalf("second Finish produced %v / %q", s.Metainfo(), sink.LastMessage())
	}
}

func TestReset(t *testing.T) {
	s := New(nil)
	s.Scan("{= open")
	s.Reset()
	if s.State() != Outside {
		t.Fatalf("state %v after Reset", s.State())
	}
	s.Scan("{= a =}")
	if data := s.Metainfo(); len(data) != 1 || data[0].Line != 1 || data[0].Begin != 0 {
		t.Fatalf("got %#v", data)
	}
}

func TestMetainfoIsPerCall(t *testing.T) {
	s := New(nil)
	s.Scan("{% a %}")
	first := s.Metainfo()
	s.Scan("text")
	if first[0].Type != Code {
		t.Fatalf("earlier view was modified: %v", first.Types())
	}
	if got := s.Metainfo().Types(); !reflect.DeepEqual(got, []MetaType{Text}) {
		t.Fatalf("got %v", got)
	}
}

func TestCustomSyntax(t *testing.T) {
	syn := Syntax{Lead: '<', Trail: '>', Code: '?', Echo: '@', Reserved: []byte{'!'}}
	sink := &Recorder{}
	s, err := NewWithSyntax(sink, syn)
	if err != nil {
		t.Fatalf("NewWithSyntax: %v", err)
	}
	s.Scan("<p><@ name @></p><? end ?>")
	if got := s.Metainfo().Types(); !reflect.DeepEqual(got, []MetaType{Text, Echo, Text, Code}) {
		t.Fatalf("got %v", got)
	}
	s.Scan("<@ name ?>")
	if !strings.HasPrefix(sink.LastMessage(), "expects @") {
		t.Fatalf("error %q, want expects @", sink.LastMessage())
	}
	s.Scan("<!-- x -->")
	if !strings.HasPrefix(sink.LastMessage(), "unexpected character") {
		t.Fatalf("error %q", sink.LastMessage())
	}
	if len(sink.Errors) != 2 {
		t.Fatalf("recorded %d errors, want 2", len(sink.Errors))
	}
}

func TestNewWithSyntaxRejectsInvalid(t *testing.T) {
	syn := DefaultSyntax()
	syn.Echo = syn.Code
	if _, err := NewWithSyntax(nil, syn); err == nil {
		t.Fatalf("expected error for duplicate markers")
	}
}

// recordingSink checks that the Scanner needs nothing beyond ErrorSink.
type recordingSink struct {
	msgs    []string
	last    string
	cleared int
}

func (r *recordingSink) Report(err error) {
	r.last = err.Error()
	r.msgs = append(r.msgs, r.last)
}
func (r *recordingSink) LastMessage() string { return r.last }
func (r *recordingSink) Clear()              { r.last = ""; r.cleared++ }

func TestReportedLabels(t *testing.T) {
	sink := &recordingSink{}
	s := New(sink)
	var lines []string
	for _, name := range []string{"block.1", "block.2", "block.3"} {
		lines = append(lines, readLines(t, name)...)
	}
	for _, line := range lines {
		s.Scan(line)
	}
	s.Finish()
	if sink.cleared != len(lines)+1 {
		t.Fatalf("sink cleared %d times, want %d", sink.cleared, len(lines)+1)
	}
	if len(sink.msgs) == 0 {
		t.Fatalf("no diagnostics reported")
	}
	for _, msg := range sink.msgs {
		if !hasLabel(msg) {
			t.Errorf("diagnostic %q has no known label", msg)
		}
	}
}

func TestIndependentScanners(t *testing.T) {
	lines := readLines(t, "block.2")
	want := make([][]MetaType, len(lines))
	ref := New(nil)
	for i, line := range lines {
		ref.Scan(line)
		want[i] = ref.Metainfo().Types()
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8*len(lines))
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := New(&Diagnostics{})
			for i, line := range lines {
				s.Scan(line)
				if got := s.Metainfo().Types(); !reflect.DeepEqual(got, want[i]) {
					errs <- line
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for line := range errs {
		t.Errorf("concurrent scan of %q diverged", line)
	}
}
