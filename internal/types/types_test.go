package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSign(t *testing.T) {
	credits := []TransactionKind{TransactionKindDeposit, TransactionKindAccrual, TransactionKindReferralCommission}
	debits := []TransactionKind{TransactionKindWithdrawal, TransactionKindPurchase}

	for _, k := range credits {
		assert.True(t, k.IsCredit(), k)
		assert.False(t, k.IsDebit(), k)
	}
	for _, k := range debits {
		assert.True(t, k.IsDebit(), k)
		assert.False(t, k.IsCredit(), k)
	}
	assert.False(t, TransactionKind("bonus").Valid())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, TransactionStatusPending.Valid())
	assert.True(t, TransactionStatusCompleted.Valid())
	assert.True(t, TransactionStatusFailed.Valid())
	assert.True(t, TransactionStatusCancelled.Valid())
	assert.False(t, TransactionStatus("done").Valid())
}
