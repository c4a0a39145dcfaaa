package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cryptoprofit/internal/types"
)

func TestVerifySignature(t *testing.T) {
	secret := "ipn-secret"
	body := []byte("txn_id=abc&amount=25.00&status=100")

	assert.True(t, VerifySignature(secret, body, Sign(secret, body)))
	assert.False(t, VerifySignature(secret, body, Sign("other-secret", body)))
	assert.False(t, VerifySignature(secret, []byte("txn_id=abc&amount=25.01&status=100"), Sign(secret, body)))
	assert.False(t, VerifySignature(secret, body, ""))
}

func TestVerifySignatureCoversExactBytes(t *testing.T) {
	secret := "ipn-secret"
	body := []byte("txn_id=abc&amount=25.00")
	sig := Sign(secret, body)

	// Any re-serialization of the payload must invalidate the signature.
	assert.False(t, VerifySignature(secret, []byte("amount=25.00&txn_id=abc"), sig))
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, types.TransactionStatusCompleted, MapStatus(100))
	assert.Equal(t, types.TransactionStatusFailed, MapStatus(-1))
	assert.Equal(t, types.TransactionStatusFailed, MapStatus(-2))
	assert.Equal(t, types.TransactionStatusPending, MapStatus(0))
	assert.Equal(t, types.TransactionStatusPending, MapStatus(1))
	assert.Equal(t, types.TransactionStatusPending, MapStatus(2))
	assert.Equal(t, types.TransactionStatusPending, MapStatus(3))
	assert.Equal(t, types.TransactionStatusPending, MapStatus(42))
}

func TestParseIPN(t *testing.T) {
	ipn, err := ParseIPN([]byte("txn_id=CPAY123&amount=25.50&status=100&address=TAddr&currency=USDT.TRC20"))
	assert.NoError(t, err)
	assert.Equal(t, "CPAY123", ipn.TxnID)
	assert.True(t, ipn.Amount.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, 100, ipn.Status)
	assert.Equal(t, "TAddr", ipn.Address)
	assert.Equal(t, "USDT.TRC20", ipn.Currency)
}

func TestParseIPNRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"missing txn id":  "amount=25.50&status=100",
		"missing amount":  "txn_id=CPAY123&status=100",
		"bad amount":      "txn_id=CPAY123&amount=abc&status=100",
		"negative amount": "txn_id=CPAY123&amount=-5&status=100",
		"zero amount":     "txn_id=CPAY123&amount=0&status=100",
		"bad status":      "txn_id=CPAY123&amount=25.50&status=done",
	}
	for name, raw := range cases {
		_, err := ParseIPN([]byte(raw))
		assert.Error(t, err, name)
	}
}
