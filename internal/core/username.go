package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLength is measured in runes.
const MaxUsernameLength = 32

// ValidateUsername checks the registration frame.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidUsername)
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, MaxUsernameLength)
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: must not start with '/'", ErrInvalidUsername)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: must not contain whitespace or control characters", ErrInvalidUsername)
		}
	}
	return nil
}
