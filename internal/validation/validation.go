package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrCityEmpty is returned when the city is empty or whitespace-only after trim.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooLong is returned when the city exceeds the configured maximum.
var ErrCityTooLong = errors.New("city too long")

// ValidateCity trims input and checks it is non-empty and at most maxLen runes
// (maxLen <= 0 disables the bound). Characters are not restricted: city names
// carry apostrophes, dots and country suffixes ("St. John's,CA").
// Returns the trimmed city. Lowercasing is left to the cache.
func ValidateCity(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrCityEmpty
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return "", ErrCityTooLong
	}
	return s, nil
}
