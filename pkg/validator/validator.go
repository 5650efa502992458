package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPayloadBytes bounds a single payload submitted for a decision.
const MaxPayloadBytes = 64 << 10

var (
	// ErrEmptyField is returned when a required field is empty
	ErrEmptyField = errors.New("field cannot be empty")
	// ErrInvalidIdentifier is returned for dataset or model ids with unexpected characters
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadBytes
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidEncoding is returned for payloads that are not valid UTF-8
	ErrInvalidEncoding = errors.New("payload is not valid UTF-8")
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Required checks if a string field is not empty
func Required(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// Identifier validates a dataset or model id before it reaches the catalog.
func Identifier(value, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s: %w", fieldName, ErrEmptyField)
	}
	if !identifierRegex.MatchString(value) {
		return fmt.Errorf("%s %q: %w", fieldName, value, ErrInvalidIdentifier)
	}
	return nil
}

// Payload checks size and encoding. Content is never altered.
func Payload(p string) error {
	if len(p) > MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	if !utf8.ValidString(p) {
		return ErrInvalidEncoding
	}
	return nil
}

// Page validates pagination parameters; zero means "use the default".
func Page(page, limit int64) error {
	if page < 0 {
		return errors.New("page must not be negative")
	}
	if limit < 0 || limit > 100 {
		return errors.New("limit must be between 1 and 100")
	}
	return nil
}
