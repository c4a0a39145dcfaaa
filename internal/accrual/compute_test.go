package accrual

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeRunSumsPerUser(t *testing.T) {
	run := ComputeRun([]PositionSnapshot{
		{ID: "p1", UserID: "alice", Principal: dec("50"), Rate: dec("0.05")},
		{ID: "p2", UserID: "bob", Principal: dec("100"), Rate: dec("0.01")},
		{ID: "p3", UserID: "bob", Principal: dec("200"), Rate: dec("0.03")},
	})

	// 50 * 0.05 = 2.50
	// 100 * 0.01 + 200 * 0.03 = 1.00 + 6.00 = 7.00
	assert.Len(t, run.Credits, 2)
	assert.Equal(t, "alice", run.Credits[0].UserID)
	assert.Equal(t, "2.50", run.Credits[0].Amount.StringFixed(2))
	assert.Equal(t, "bob", run.Credits[1].UserID)
	assert.Equal(t, "7.00", run.Credits[1].Amount.StringFixed(2))
}

func TestComputeRunRoundsAfterSumming(t *testing.T) {
	// Each position earns 0.005; rounding per position would give 0.01+0.01,
	// rounding the sum gives 0.01.
	run := ComputeRun([]PositionSnapshot{
		{ID: "p1", UserID: "alice", Principal: dec("0.50"), Rate: dec("0.01")},
		{ID: "p2", UserID: "alice", Principal: dec("0.50"), Rate: dec("0.01")},
	})
	assert.Len(t, run.Credits, 1)
	assert.Equal(t, "0.01", run.Credits[0].Amount.StringFixed(2))
}

func TestComputeRunDropsZeroCredits(t *testing.T) {
	run := ComputeRun([]PositionSnapshot{
		{ID: "p1", UserID: "alice", Principal: dec("0.10"), Rate: dec("0.01")},
	})
	// 0.001 rounds to 0.00: no ledger record, no balance change; the
	// position still accrues the raw amount
	assert.Empty(t, run.Credits)
	assert.True(t, run.Increments["p1"].Equal(dec("0.001")))
}

func TestComputeRunIncrementsMatchCredits(t *testing.T) {
	// Two sub-cent positions: rounding each increment would accrue 0.02
	// against a 0.01 credit. Increments stay raw, so their sum equals the
	// credited amount exactly.
	run := ComputeRun([]PositionSnapshot{
		{ID: "p1", UserID: "alice", Principal: dec("0.50"), Rate: dec("0.01")},
		{ID: "p2", UserID: "alice", Principal: dec("0.50"), Rate: dec("0.01")},
	})
	sum := run.Increments["p1"].Add(run.Increments["p2"])
	assert.True(t, sum.Equal(dec("0.01")))
	assert.Len(t, run.Credits, 1)
	assert.True(t, run.Credits[0].Amount.Equal(sum))
}

func TestComputeRunDeterministicOrder(t *testing.T) {
	positions := []PositionSnapshot{
		{ID: "p1", UserID: "carol", Principal: dec("10"), Rate: dec("0.01")},
		{ID: "p2", UserID: "alice", Principal: dec("10"), Rate: dec("0.01")},
		{ID: "p3", UserID: "bob", Principal: dec("10"), Rate: dec("0.01")},
	}
	for i := 0; i < 10; i++ {
		run := ComputeRun(positions)
		assert.Equal(t, "alice", run.Credits[0].UserID)
		assert.Equal(t, "bob", run.Credits[1].UserID)
		assert.Equal(t, "carol", run.Credits[2].UserID)
	}
}

func TestComputeRunEmpty(t *testing.T) {
	run := ComputeRun(nil)
	assert.Empty(t, run.Credits)
	assert.Empty(t, run.Increments)
}
