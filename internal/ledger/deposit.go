package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/types"
)

// DepositResult reports what a notification delivery actually did. The
// gateway re-delivers (at-least-once); Credited is true for exactly one
// delivery per external transaction id.
type DepositResult struct {
	Transaction   Transaction
	Created       bool
	StatusChanged bool
	Credited      bool
}

type depositDecision struct {
	UpdateStatus bool
	Credit       bool
}

// decideDeposit is the transition rule for an existing deposit row. The
// credit fires on the not-completed -> completed transition, never on the
// status value itself, so repeated identical callbacks are no-ops.
func decideDeposit(existing, incoming types.TransactionStatus) depositDecision {
	return depositDecision{
		UpdateStatus: existing != incoming,
		Credit:       incoming == types.TransactionStatusCompleted && existing != types.TransactionStatusCompleted,
	}
}

// ProcessDeposit applies one gateway notification exactly once. The user row
// lock serializes it against purchases and withdrawals for the same user;
// the unique index on external_tx_id linearizes concurrent duplicate
// deliveries, with the race loser taking the already-exists branch.
func (s *Service) ProcessDeposit(ctx context.Context, userID, externalTxID string, amount decimal.Decimal, address string, status types.TransactionStatus) (DepositResult, error) {
	if externalTxID == "" {
		return DepositResult{}, apperr.Validation("external transaction id is required")
	}
	// Round once at intake so the recorded amount matches the cents the
	// balance column actually moves by.
	amount = amount.Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return DepositResult{}, apperr.Validation("amount must be positive")
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	tx, err := s.Begin(ctx)
	if err != nil {
		return DepositResult{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.LockUser(ctx, tx, userID); err != nil {
		return DepositResult{}, err
	}

	existing, found, err := s.FindByExternalID(ctx, tx, externalTxID)
	if err != nil {
		return DepositResult{}, err
	}

	if !found {
		// Holding the user lock serializes duplicate deliveries for this
		// user, so reaching here means this delivery creates the row. A
		// racing insert under a different user id trips the unique index
		// and surfaces as a retryable store error.
		created, err := s.RecordTransaction(ctx, tx, userID, types.TransactionKindDeposit, amount, status, RecordOptions{
			ExternalTxID: externalTxID,
			Address:      address,
		})
		if err != nil {
			return DepositResult{}, err
		}
		if created.UserID != userID {
			return DepositResult{}, apperr.Conflict("external transaction id belongs to another user")
		}
		result := DepositResult{Transaction: created, Created: true}
		if status == types.TransactionStatusCompleted {
			if err := s.CreditUser(ctx, tx, userID, amount); err != nil {
				return DepositResult{}, err
			}
			result.Credited = true
		}
		if err := tx.Commit(ctx); err != nil {
			return DepositResult{}, apperr.Store(err)
		}
		return result, nil
	}
	if existing.UserID != userID {
		return DepositResult{}, apperr.Conflict("external transaction id belongs to another user")
	}

	var result DepositResult
	d := decideDeposit(existing.Status, status)
	result.Transaction = existing
	if d.UpdateStatus {
		if err := s.UpdateStatus(ctx, tx, existing.ID, status); err != nil {
			return DepositResult{}, err
		}
		existing.Status = status
		result.Transaction = existing
		result.StatusChanged = true
	}
	if d.Credit {
		if err := s.CreditUser(ctx, tx, userID, existing.Amount); err != nil {
			return DepositResult{}, err
		}
		result.Credited = true
	}
	if err := tx.Commit(ctx); err != nil {
		return DepositResult{}, apperr.Store(err)
	}
	return result, nil
}
