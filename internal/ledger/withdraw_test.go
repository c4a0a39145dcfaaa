package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cryptoprofit/internal/apperr"
)

func TestValidateWithdrawAddress(t *testing.T) {
	assert.NoError(t, ValidateWithdrawAddress("TJRabPrwbZy45sbavfcjinPJC18kjpRTv8"))

	bad := []string{
		"",
		"JRabPrwbZy45sbavfcjinPJC18kjpRTv8",    // missing T prefix
		"TJRabPrwbZy45sbavfcjinPJC18kjpRTv",    // too short
		"TJRabPrwbZy45sbavfcjinPJC18kjpRTv8X",  // too long
		"TJRabPrwbZy45sbavfcjinPJC18kjpRTv0",   // 0 is not base58
		"TJRabPrwbZy45sbavfcjinPJC18kjpRTvO",   // O is not base58
		"0x52908400098527886E0F7030069857D2E4169", // EVM address
	}
	for _, addr := range bad {
		err := ValidateWithdrawAddress(addr)
		assert.Error(t, err, addr)
		assert.True(t, apperr.IsCode(err, apperr.CodeValidation), addr)
	}
}

func TestRequestWithdrawalRejectsBeforeStoreAccess(t *testing.T) {
	svc := NewService(nil, time.Second)
	ctx := context.Background()
	addr := "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8"

	_, err := svc.RequestWithdrawal(ctx, "u1", decimal.Zero, addr)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	// sub-cent requests round to zero at intake
	_, err = svc.RequestWithdrawal(ctx, "u1", decimal.RequireFromString("0.004"), addr)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.RequestWithdrawal(ctx, "u1", decimal.RequireFromString("10"), "bad-address")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}
