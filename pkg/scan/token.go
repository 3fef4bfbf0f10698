package scan

import "fmt"

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	TokenIdent  TokenKind = iota // name or keyword
	TokenNumber                  // numeric literal
	TokenString                  // quoted string, quotes included
	TokenOp                      // operator or punctuation
)

func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "ident"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenOp:
		return "op"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// MarshalYAML implements yaml.Marshaler.
func (k TokenKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// Token is an atomic lexical unit of directive content.
type Token struct {
	Kind TokenKind `yaml:"kind"`
	Text string    `yaml:"text"`
	Pos  int       `yaml:"pos"` // stream offset
}

// operators lists multi-byte operators, longest first.
var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "..", "+=", "-="}

// tokenize splits directive content into tokens. base is the stream offset
// of content[0]. Unknown bytes become single-byte operators, and so does a
// quote with no match before the end of its line.
func tokenize(content string, base int) []Token {
	var toks []Token
	i, n := 0, len(content)
	for i < n {
		c := content[i]
		start := i
		switch {
		case isSpace(c):
			i++
			continue
		case isDigit(c):
			for i < n && (isIdentByte(content[i]) || content[i] == '.' && i+1 < n && isDigit(content[i+1])) {
				i++
			}
			toks = append(toks, Token{Kind: TokenNumber, Text: content[start:i], Pos: base + start})
		case isIdentStart(c):
			for i < n && isIdentByte(content[i]) {
				i++
			}
			toks = append(toks, Token{Kind: TokenIdent, Text: content[start:i], Pos: base + start})
		case (c == '"' || c == '\'') && stringEnd(content, i) > 0:
			i = stringEnd(content, i)
			toks = append(toks, Token{Kind: TokenString, Text: content[start:i], Pos: base + start})
		default:
			i++
			for _, op := range operators {
				if len(content)-start >= len(op) && content[start:start+len(op)] == op {
					i = start + len(op)
					break
				}
			}
			toks = append(toks, Token{Kind: TokenOp, Text: content[start:i], Pos: base + start})
		}
	}
	return toks
}

// stringEnd returns the offset just past the string starting at content[i],
// or 0 when the quote is not closed on its line.
func stringEnd(content string, i int) int {
	q := content[i]
	for j := i + 1; j < len(content) && content[j] != '\n'; j++ {
		switch content[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return 0
}

// isOperand reports whether t can end an operand, which makes a following
// minus binary rather than unary.
func (t Token) isOperand() bool {
	switch t.Kind {
	case TokenIdent, TokenNumber, TokenString:
		return true
	}
	return t.Text == ")" || t.Text == "]"
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func isIdentByte(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}
