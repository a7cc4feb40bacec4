// backend/src/security/validation/field_validator_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateInstrumentID(t *testing.T) {
	assert.NoError(t, ValidateInstrumentID("AAPL"))
	assert.NoError(t, ValidateInstrumentID("VANGUARD FTSE ALL-WORLD"))
	assert.NoError(t, ValidateInstrumentID("IE00B3RBWM25"))

	assert.Error(t, ValidateInstrumentID(""))
	assert.Error(t, ValidateInstrumentID("lowercase"))
	assert.Error(t, ValidateInstrumentID("-LEADING"))
	assert.Error(t, ValidateInstrumentID("DROP;TABLE"))
}

func TestValidateCurrencyCode(t *testing.T) {
	assert.NoError(t, ValidateCurrencyCode("USD"))
	// Case-insensitive: codes are uppercased before the shape check.
	assert.NoError(t, ValidateCurrencyCode("usd"))
	// Empty means "use the default", not a failure.
	assert.NoError(t, ValidateCurrencyCode(""))

	assert.Error(t, ValidateCurrencyCode("EURO"))
	assert.Error(t, ValidateCurrencyCode("E1"))
	assert.Error(t, ValidateCurrencyCode("U$"))
}

func TestValidateTargetPercent(t *testing.T) {
	assert.NoError(t, ValidateTargetPercent(0))
	assert.NoError(t, ValidateTargetPercent(100))

	assert.Error(t, ValidateTargetPercent(-0.1))
	assert.Error(t, ValidateTargetPercent(100.1))
}

func TestValidateRate(t *testing.T) {
	assert.NoError(t, ValidateRate(1.09))

	assert.Error(t, ValidateRate(0))
	assert.Error(t, ValidateRate(-1))
}
