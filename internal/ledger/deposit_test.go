package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/types"
)

func TestDecideDepositCreditsOnTransitionOnly(t *testing.T) {
	// pending row, completed callback: credit fires
	d := decideDeposit(types.TransactionStatusPending, types.TransactionStatusCompleted)
	assert.True(t, d.UpdateStatus)
	assert.True(t, d.Credit)

	// completed row, repeated completed callback: nothing happens
	d = decideDeposit(types.TransactionStatusCompleted, types.TransactionStatusCompleted)
	assert.False(t, d.UpdateStatus)
	assert.False(t, d.Credit)

	// pending row, repeated pending callback: nothing happens
	d = decideDeposit(types.TransactionStatusPending, types.TransactionStatusPending)
	assert.False(t, d.UpdateStatus)
	assert.False(t, d.Credit)

	// pending row, failed callback: status moves, no credit
	d = decideDeposit(types.TransactionStatusPending, types.TransactionStatusFailed)
	assert.True(t, d.UpdateStatus)
	assert.False(t, d.Credit)

	// failed row, completed callback: late confirmation still credits
	d = decideDeposit(types.TransactionStatusFailed, types.TransactionStatusCompleted)
	assert.True(t, d.UpdateStatus)
	assert.True(t, d.Credit)

	// completed row, failed callback: status downgrades but the credit is
	// never reversed here
	d = decideDeposit(types.TransactionStatusCompleted, types.TransactionStatusFailed)
	assert.True(t, d.UpdateStatus)
	assert.False(t, d.Credit)
}

func TestDecideDepositDeliverySequences(t *testing.T) {
	// Replay an at-least-once delivery stream against an evolving row and
	// count credits; any ordering of duplicates must credit exactly once.
	sequences := [][]types.TransactionStatus{
		{types.TransactionStatusCompleted},
		{types.TransactionStatusCompleted, types.TransactionStatusCompleted, types.TransactionStatusCompleted},
		{types.TransactionStatusPending, types.TransactionStatusCompleted},
		{types.TransactionStatusPending, types.TransactionStatusPending, types.TransactionStatusCompleted, types.TransactionStatusCompleted},
		{types.TransactionStatusPending, types.TransactionStatusFailed, types.TransactionStatusCompleted},
	}
	for _, seq := range sequences {
		existing := seq[0]
		credits := 0
		if existing == types.TransactionStatusCompleted {
			credits++ // the first delivery creates the row already completed
		}
		for _, incoming := range seq[1:] {
			d := decideDeposit(existing, incoming)
			if d.Credit {
				credits++
			}
			if d.UpdateStatus {
				existing = incoming
			}
		}
		assert.Equal(t, 1, credits, "sequence %v", seq)
	}
}

func TestProcessDepositRejectsBeforeStoreAccess(t *testing.T) {
	svc := NewService(nil, time.Second)
	ctx := context.Background()

	_, err := svc.ProcessDeposit(ctx, "u1", "", decimal.RequireFromString("10"), "", types.TransactionStatusCompleted)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.ProcessDeposit(ctx, "u1", "ext-1", decimal.Zero, "", types.TransactionStatusCompleted)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	// Amounts round to cents at intake; a sub-cent deposit rounds to zero
	// and is rejected rather than recorded at a value the balance column
	// cannot hold.
	_, err = svc.ProcessDeposit(ctx, "u1", "ext-1", decimal.RequireFromString("0.004"), "", types.TransactionStatusCompleted)
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
}
