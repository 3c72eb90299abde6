package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeneratedNumbersCarryPrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateOrderNo(), "O"))
	assert.True(t, strings.HasPrefix(GeneratePaymentNo(), "P"))
	assert.True(t, strings.HasPrefix(GenerateRefundNo(), "R"))
}

func TestGeneratedNumbersUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		no := GeneratePaymentNo()
		assert.False(t, seen[no], "duplicate payment no %s", no)
		seen[no] = true
	}
}
