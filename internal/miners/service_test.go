package miners

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cryptoprofit/internal/apperr"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func starterType() MinerType {
	return MinerType{
		ID:          "mt1",
		Name:        "Starter",
		DailyRate:   dec("0.01"),
		MinPurchase: dec("10"),
		MaxPurchase: dec("500"),
		Enabled:     true,
	}
}

func TestValidatePurchase(t *testing.T) {
	mt := starterType()

	assert.NoError(t, validatePurchase(mt, dec("10")))
	assert.NoError(t, validatePurchase(mt, dec("250")))
	assert.NoError(t, validatePurchase(mt, dec("500")))
}

func TestValidatePurchaseRejectsOutOfRange(t *testing.T) {
	mt := starterType()

	err := validatePurchase(mt, dec("9.99"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.Contains(t, err.Error(), "minimum purchase is 10.00")

	err = validatePurchase(mt, dec("500.01"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.Contains(t, err.Error(), "maximum purchase is 500.00")
}

func TestValidatePurchaseRejectsDisabledType(t *testing.T) {
	mt := starterType()
	mt.Enabled = false

	err := validatePurchase(mt, dec("100"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestValidatePurchaseUnboundedMax(t *testing.T) {
	mt := starterType()
	mt.MaxPurchase = decimal.Zero

	assert.NoError(t, validatePurchase(mt, dec("1000000")))
}

func TestPurchaseRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(nil, nil, nil, time.Second)

	// Rejected before any store access, so state cannot have changed.
	_, err := svc.Purchase(context.Background(), "u1", "mt1", decimal.Zero)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.Purchase(context.Background(), "u1", "mt1", dec("-5"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	// Sub-cent amounts round to zero at intake and are rejected the same way.
	_, err = svc.Purchase(context.Background(), "u1", "mt1", dec("0.004"))
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}
