package referral

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	rate := decimal.RequireFromString("0.10")

	// 50 at 10% pays 5.00
	assert.Equal(t, "5.00", Commission(decimal.RequireFromString("50"), rate).StringFixed(2))
	// rounded to cents
	assert.Equal(t, "0.05", Commission(decimal.RequireFromString("0.49"), rate).StringFixed(2))
	assert.Equal(t, "0.00", Commission(decimal.RequireFromString("0.01"), rate).StringFixed(2))
	assert.Equal(t, "123.46", Commission(decimal.RequireFromString("1234.56"), rate).StringFixed(2))
}

func TestCommissionZeroRate(t *testing.T) {
	got := Commission(decimal.RequireFromString("100"), decimal.Zero)
	assert.True(t, got.IsZero())
}
