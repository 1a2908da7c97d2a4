// Package parse validates raw operator input at the HTTP boundary.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"smart-street-backend/internal/model"
)

// MaxRemarksLength is the longest accepted decision remark, in characters.
const MaxRemarksLength = 2000

// ValidationError reports malformed input for one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RequestID checks that raw is a UUID and returns it in canonical lowercase form.
func RequestID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", invalid("request id", "%q is not a UUID", raw)
	}
	return id.String(), nil
}

// Status parses a request status filter. Matching is case-insensitive.
func Status(raw string) (model.RequestStatus, error) {
	s := model.RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", invalid("status", "must be one of PENDING, APPROVED, REJECTED")
	}
	return s, nil
}

// Remarks trims optional decision remarks. Empty remarks become nil.
func Remarks(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	if n := utf8.RuneCountInString(s); n > MaxRemarksLength {
		return nil, invalid("remarks", "%d characters exceeds the limit of %d", n, MaxRemarksLength)
	}
	return &s, nil
}

// Bool parses an optional boolean query flag. An empty value is false.
func Bool(field, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalid(field, "%q is not a boolean", raw)
	}
	return b, nil
}

// Limit parses an optional positive page size, capped at max. An empty value is def.
func Limit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, invalid("limit", "%q is not a positive integer", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// Required rejects a blank value.
func Required(field, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", invalid(field, "is required")
	}
	return s, nil
}
