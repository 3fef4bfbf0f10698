package scan

import "fmt"

// MetaType classifies a block of template source.
type MetaType int

const (
	Text MetaType = iota // literal text, copied to the output
	Code                 // executable directive
	Echo                 // directive whose value is written to the output
)

func (t MetaType) String() string {
	switch t {
	case Text:
		return "TEXT"
	case Code:
		return "CODE"
	case Echo:
		return "ECHO"
	}
	return fmt.Sprintf("MetaType(%d)", int(t))
}

// MarshalYAML implements yaml.Marshaler.
func (t MetaType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// Metadata describes one block found by the Scanner.
//
// Begin and End are byte offsets into the stream formed by joining the
// scanned lines with '\n'; End is exclusive. For directives the range covers
// the delimiters while Content holds only what lies between them.
type Metadata struct {
	Type    MetaType `yaml:"type"`
	Line    int      `yaml:"line"`
	Begin   int      `yaml:"begin"`
	End     int      `yaml:"end"`
	Content string   `yaml:"content"`
	Tokens  []Token  `yaml:"tokens,omitempty"`
}

// Metainfo is the ordered sequence of blocks produced by one Scan call.
type Metainfo []Metadata

// Types returns the block types in order.
func (m Metainfo) Types() []MetaType {
	out := make([]MetaType, len(m))
	for i, md := range m {
		out[i] = md.Type
	}
	return out
}
