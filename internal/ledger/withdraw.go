package ledger

import (
	"context"
	"regexp"

	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/types"
)

// TRC20 address shape: base58, 34 chars, leading T.
var trc20Address = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)

func ValidateWithdrawAddress(address string) error {
	if address == "" {
		return apperr.Validation("withdrawal address is required")
	}
	if !trc20Address.MatchString(address) {
		return apperr.Validation("invalid withdrawal address")
	}
	return nil
}

// RequestWithdrawal reserves the funds immediately: the debit and the
// pending withdrawal row commit as one unit. Actual payout happens out of
// band and later resolves the row through ResolveWithdrawal.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, address string) (Transaction, error) {
	amount = amount.Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return Transaction{}, apperr.Validation("amount must be positive")
	}
	if err := ValidateWithdrawAddress(address); err != nil {
		return Transaction{}, err
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	tx, err := s.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.LockUser(ctx, tx, userID); err != nil {
		return Transaction{}, err
	}
	if err := s.DebitUser(ctx, tx, userID, amount); err != nil {
		return Transaction{}, err
	}
	record, err := s.RecordTransaction(ctx, tx, userID, types.TransactionKindWithdrawal, amount, types.TransactionStatusPending, RecordOptions{
		Address:     address,
		Description: "Withdrawal request",
	})
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, apperr.Store(err)
	}
	return record, nil
}

// ResolveWithdrawal is the administrative completion path. Approval marks
// the reserved debit completed; rejection refunds the user explicitly —
// a compensating credit, not a rollback.
func (s *Service) ResolveWithdrawal(ctx context.Context, txID string, approve bool) (Transaction, error) {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	tx, err := s.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	var record Transaction
	var kind, status string
	err = tx.QueryRow(ctx, `
		SELECT id::text, user_id::text, kind, amount, status, COALESCE(address, ''), created_at
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, txID).Scan(&record.ID, &record.UserID, &kind, &record.Amount, &status, &record.Address, &record.CreatedAt)
	if err != nil {
		return Transaction{}, apperr.NotFound("withdrawal not found")
	}
	record.Kind = types.TransactionKind(kind)
	record.Status = types.TransactionStatus(status)
	if record.Kind != types.TransactionKindWithdrawal {
		return Transaction{}, apperr.Validation("transaction is not a withdrawal")
	}
	if record.Status != types.TransactionStatusPending {
		return Transaction{}, apperr.Conflict("withdrawal is already resolved")
	}

	if _, err := s.LockUser(ctx, tx, record.UserID); err != nil {
		return Transaction{}, err
	}
	next := types.TransactionStatusCompleted
	if !approve {
		next = types.TransactionStatusFailed
		if err := s.CreditUser(ctx, tx, record.UserID, record.Amount); err != nil {
			return Transaction{}, err
		}
	}
	if err := s.UpdateStatus(ctx, tx, record.ID, next); err != nil {
		return Transaction{}, err
	}
	record.Status = next
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, apperr.Store(err)
	}
	return record, nil
}
