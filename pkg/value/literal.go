package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bounds for integer literals written directly in template source. The value
// model stores 64 bits, but literals are limited to the 32-bit range.
const (
	MaxLiteral         = math.MaxUint32
	MaxNegativeLiteral = -math.MinInt32
)

var (
	ErrLiteralRange  = errors.New("literal exceeds 32 bits")
	ErrLiteralSyntax = errors.New("invalid integer literal")
)

// ParseLiteral parses a decimal or 0x-prefixed hexadecimal integer literal.
// Single underscores may separate digits.
// When negative is set the literal is the operand of a unary minus and the
// result is an Int; otherwise it is a Uint.
func ParseLiteral(text string, negative bool) (Var, error) {
	digits, base := text, 10
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		digits, base = text[2:], 16
	}
	if strings.Contains(digits, "_") {
		if strings.HasPrefix(digits, "_") || strings.HasSuffix(digits, "_") || strings.Contains(digits, "__") {
			return nil, fmt.Errorf("%q: %w", text, ErrLiteralSyntax)
		}
		digits = strings.ReplaceAll(digits, "_", "")
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%s: %w", text, ErrLiteralRange)
		}
		return nil, fmt.Errorf("%q: %w", text, ErrLiteralSyntax)
	}
	if negative {
		if n > MaxNegativeLiteral {
			return nil, fmt.Errorf("-%s: %w", text, ErrLiteralRange)
		}
		return Int(-int64(n)), nil
	}
	if n > MaxLiteral {
		return nil, fmt.Errorf("%s: %w", text, ErrLiteralRange)
	}
	return Uint(n), nil
}

// FitsLiteral reports whether v is an integer that could have been written
// as a literal in template source.
func FitsLiteral(v Var) bool {
	switch t := v.(type) {
	case Uint:
		return t <= MaxLiteral
	case Int:
		return t >= math.MinInt32 && t <= MaxLiteral
	}
	return false
}
