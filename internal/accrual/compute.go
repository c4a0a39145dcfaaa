package accrual

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PositionSnapshot is the slice of a position the batch needs.
type PositionSnapshot struct {
	ID        string
	UserID    string
	Principal decimal.Decimal
	Rate      decimal.Decimal
}

// UserCredit is the per-user sum of a run, one ledger record each.
type UserCredit struct {
	UserID string
	Amount decimal.Decimal
}

type Run struct {
	// Increments holds the raw per-position profit, keyed by position id.
	// Deliberately unrounded: rounding happens once, on the per-user sum,
	// so accrued totals never drift from the credited amounts by a cent
	// per position.
	Increments map[string]decimal.Decimal
	// Credits is one rounded, positive entry per user, ordered by user id
	// so the batch touches rows in a stable order.
	Credits []UserCredit
}

// ComputeRun turns a snapshot of active positions into the day's credits.
// Each position earns principal * rate; per-user totals are rounded to
// cents once, after summing, and users whose total rounds to zero or below
// are dropped.
func ComputeRun(positions []PositionSnapshot) Run {
	run := Run{Increments: make(map[string]decimal.Decimal, len(positions))}
	totals := make(map[string]decimal.Decimal)
	for _, p := range positions {
		profit := p.Principal.Mul(p.Rate)
		run.Increments[p.ID] = profit
		totals[p.UserID] = totals[p.UserID].Add(profit)
	}
	for userID, total := range totals {
		amount := total.Round(2)
		if !amount.GreaterThan(decimal.Zero) {
			continue
		}
		run.Credits = append(run.Credits, UserCredit{UserID: userID, Amount: amount})
	}
	sort.Slice(run.Credits, func(i, j int) bool {
		return run.Credits[i].UserID < run.Credits[j].UserID
	})
	return run
}
