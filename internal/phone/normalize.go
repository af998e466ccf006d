package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	CountryCode      = "254"
	trunkPrefix      = "0"
	subscriberLength = 9
)

var (
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")

	canonical = regexp.MustCompile(`^` + CountryCode + `\d{9}$`)
	nonDigit  = regexp.MustCompile(`\D`)
)

// InvalidFormatError carries the rejected input.
type InvalidFormatError struct {
	Input string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidPhoneFormat, e.Input)
}

func (e *InvalidFormatError) Unwrap() error {
	return ErrInvalidPhoneFormat
}

// Normalize maps national, international and bare subscriber formats to
// 254XXXXXXXXX. The first matching rule wins and the result is always checked
// against the canonical pattern.
func Normalize(input string) (string, error) {
	raw := strings.TrimSpace(input)
	digits := nonDigit.ReplaceAllString(raw, "")

	var out string
	switch {
	case strings.HasPrefix(digits, trunkPrefix) && len(digits) == len(trunkPrefix)+subscriberLength:
		out = CountryCode + digits[len(trunkPrefix):]
	case strings.HasPrefix(raw, "+"+CountryCode) && len(digits) == len(CountryCode)+subscriberLength:
		out = digits
	case strings.HasPrefix(digits, CountryCode) && len(digits) == len(CountryCode)+subscriberLength:
		out = digits
	case len(digits) == subscriberLength && !strings.HasPrefix(digits, trunkPrefix):
		out = CountryCode + digits
	default:
		return "", &InvalidFormatError{Input: input}
	}

	if !canonical.MatchString(out) {
		return "", &InvalidFormatError{Input: input}
	}
	return out, nil
}
