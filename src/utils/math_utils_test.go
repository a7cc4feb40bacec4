// backend/src/utils/math_utils_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 51.0387, RoundFloat(51.03871234, 4))
	assert.Equal(t, 1376.15, RoundFloat(1376.146788, 2))
	assert.Equal(t, -2.5, RoundFloat(-2.4999999, 1))
	assert.Equal(t, 10.0, RoundFloat(10, 4))
}
