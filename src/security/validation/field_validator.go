// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxInstrumentIDLength = 64
	MaxCurrencyCodeLength = 3
	MaxRawFieldLength     = 255
)

var (
	instrumentIDRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9 ._\-]*$`)
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks a string's UTF-8 character count.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateInstrumentID checks a normalized instrument identifier: tickers,
// ISINs, or free-form names already uppercased by the normalizer.
func ValidateInstrumentID(s string) error {
	trimmed := strings.TrimSpace(s)
	if err := ValidateStringNotEmpty(trimmed, "instrument"); err != nil {
		return err
	}
	if err := ValidateStringMaxLength(trimmed, MaxInstrumentIDLength, "instrument"); err != nil {
		return err
	}
	if !instrumentIDRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: instrument %q contains unexpected characters", ErrValidationFailed, s)
	}
	return nil
}

// ValidateCurrencyCode checks a 3-letter ISO currency code, ignoring case.
// Empty is allowed; callers decide whether the field is mandatory.
func ValidateCurrencyCode(s string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return nil
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: currency code %q is not 3 uppercase letters", ErrValidationFailed, s)
	}
	return nil
}

// ValidateTargetPercent checks an allocation target, expressed 0 to 100.
func ValidateTargetPercent(v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: target percent must be between 0 and 100, got %.2f", ErrValidationFailed, v)
	}
	return nil
}

// ValidateRate checks a user-supplied exchange rate.
func ValidateRate(v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: exchange rate must be positive, got %v", ErrValidationFailed, v)
	}
	return nil
}
