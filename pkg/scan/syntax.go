package scan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	v "github.com/jrziviani/volt/pkg/validator"
	"gopkg.in/yaml.v3"
)

// Syntax is the lexical table of directive delimiters. A directive of a
// given kind opens with Lead followed by the kind's marker and closes with
// the marker followed by Trail. Lead followed by a Reserved marker is a
// malformed opener.
type Syntax struct {
	Lead     byte
	Trail    byte
	Code     byte
	Echo     byte
	Reserved []byte
}

// DefaultSyntax returns the table used by volt templates:
// {% code %} and {= echo =}.
func DefaultSyntax() Syntax {
	return Syntax{
		Lead:     '{',
		Trail:    '}',
		Code:     '%',
		Echo:     '=',
		Reserved: []byte{'{', '#'},
	}
}

func (s Syntax) Validate() error {
	markers := append([]byte{s.Lead, s.Trail, s.Code, s.Echo}, s.Reserved...)
	for _, b := range markers {
		if err := v.Printable(b, "delimiter"); err != nil {
			return err
		}
		if b == '"' || b == '\'' || b == '\\' {
			return fmt.Errorf("delimiter %q is used for string literals", b)
		}
	}
	return v.All(
		v.NoDuplicates([]byte{s.Lead, s.Trail, s.Code, s.Echo}, "syntax delimiters"),
		v.NoDuplicates(append([]byte{s.Code, s.Echo}, s.Reserved...), "syntax markers"),
	)
}

// marker returns the marker byte of a directive kind.
func (s Syntax) marker(t MetaType) byte {
	if t == Echo {
		return s.Echo
	}
	return s.Code
}

// kindOf reports the directive kind a marker byte stands for.
func (s Syntax) kindOf(b byte) (MetaType, bool) {
	switch b {
	case s.Code:
		return Code, true
	case s.Echo:
		return Echo, true
	}
	return Text, false
}

func (s Syntax) reserved(b byte) bool {
	return slices.Contains(s.Reserved, b)
}

// opener returns the two-byte opening delimiter of a directive kind.
func (s Syntax) opener(t MetaType) string {
	return string([]byte{s.Lead, s.marker(t)})
}

type syntaxFile struct {
	Lead     string   `yaml:"lead,omitempty"`
	Trail    string   `yaml:"trail,omitempty"`
	Code     string   `yaml:"code,omitempty"`
	Echo     string   `yaml:"echo,omitempty"`
	Reserved []string `yaml:"reserved,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler. Fields left out keep the
// values already in s, so decoding over DefaultSyntax overrides only what
// the document names.
func (s *Syntax) UnmarshalYAML(node *yaml.Node) error {
	var f syntaxFile
	if err := node.Decode(&f); err != nil {
		return err
	}
	for _, field := range []struct {
		val  string
		dst  *byte
		name string
	}{
		{f.Lead, &s.Lead, "lead"},
		{f.Trail, &s.Trail, "trail"},
		{f.Code, &s.Code, "code"},
		{f.Echo, &s.Echo, "echo"},
	} {
		if field.val == "" {
			continue
		}
		if err := v.SingleByte(field.val, field.name); err != nil {
			return err
		}
		*field.dst = field.val[0]
	}
	if f.Reserved != nil {
		s.Reserved = make([]byte, 0, len(f.Reserved))
		for i, r := range f.Reserved {
			if err := v.SingleByte(r, fmt.Sprintf("reserved[%d]", i)); err != nil {
				return err
			}
			s.Reserved = append(s.Reserved, r[0])
		}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Syntax) MarshalYAML() (any, error) {
	f := syntaxFile{
		Lead:     string(s.Lead),
		Trail:    string(s.Trail),
		Code:     string(s.Code),
		Echo:     string(s.Echo),
		Reserved: []string{},
	}
	for _, r := range s.Reserved {
		f.Reserved = append(f.Reserved, string(r))
	}
	return f, nil
}

// LoadSyntax reads a YAML syntax table from path. Keys it omits keep their
// DefaultSyntax values.
func LoadSyntax(path string) (Syntax, error) {
	s := DefaultSyntax()
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("decoding syntax file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid syntax in %s: %w", path, err)
	}
	return s, nil
}
