package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Error kinds surfaced by the forecast pipeline. Callers classify with
// errors.Is; every kind is reported to clients as the same generic message.
var (
	// ErrDataUnavailable means an upstream payload lacked an expected field.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrUpstreamTimeout means an upstream call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrValidation means the request itself was malformed.
	ErrValidation = errors.New("validation error")
)

// DefaultSymbol is used when a request carries no symbol.
const DefaultSymbol = "BTC"

var symbolRe = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// NormalizeSymbol trims and upper-cases sym, substituting DefaultSymbol for
// an empty value, and rejects anything that is not 2-10 alphanumerics.
func NormalizeSymbol(sym string) (string, error) {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return DefaultSymbol, nil
	}
	if !symbolRe.MatchString(sym) {
		return "", fmt.Errorf("%w: invalid symbol %q", ErrValidation, sym)
	}
	return sym, nil
}

// Unavailable wraps ErrDataUnavailable with a formatted cause.
func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataUnavailable, fmt.Sprintf(format, args...))
}

// Invalid wraps ErrValidation with a formatted cause.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
