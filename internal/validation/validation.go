package validation

import (
	"errors"
	"unicode"
)

// ErrQueryTooLong is returned when the city query exceeds the maximum length.
var ErrQueryTooLong = errors.New("search query too long")

// ErrQueryInvalidChars is returned when the city query contains control characters.
var ErrQueryInvalidChars = errors.New("search query contains invalid characters")

// ValidateQuery checks a free-text city query. The value is otherwise passed
// through untouched: no trimming, no case folding. Empty input is valid and
// means "use the default city". maxLen counts runes; 0 disables the check.
func ValidateQuery(q string, maxLen int) error {
	n := 0
	for _, r := range q {
		n++
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return ErrQueryInvalidChars
		}
	}
	if maxLen > 0 && n > maxLen {
		return ErrQueryTooLong
	}
	return nil
}
