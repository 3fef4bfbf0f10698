package validator

import (
	"fmt"
	"slices"
)

// All returns the first non-nil error.
func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

func SingleByte(field, description string) error {
	if len(field) != 1 {
		return fmt.Errorf("%s must be a single character, got %q", description, field)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// Printable rejects control characters and bytes outside ASCII, which
// cannot serve as delimiters.
func Printable(b byte, description string) error {
	if b < 0x21 || b > 0x7e {
		return fmt.Errorf("%s must be a printable ASCII character, got %q", description, b)
	}
	return nil
}
