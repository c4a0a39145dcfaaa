package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/types"
)

// Service owns the transactions table and the balance columns on users.
// Every balance mutation goes through one of the guarded updates below,
// paired with a RecordTransaction call inside the same pgx transaction.
// The stored balance is the live value; the ledger exists for audit,
// reconciliation and recovery.
type Service struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewService(pool *pgxpool.Pool, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{pool: pool, timeout: storeTimeout}
}

type Transaction struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	Kind          types.TransactionKind   `json:"kind"`
	Amount        decimal.Decimal         `json:"amount"`
	Status        types.TransactionStatus `json:"status"`
	ExternalTxID  string                  `json:"external_tx_id,omitempty"`
	Address       string                  `json:"address,omitempty"`
	MinerTypeID   string                  `json:"miner_type_id,omitempty"`
	RelatedUserID string                  `json:"related_user_id,omitempty"`
	Description   string                  `json:"description,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// RecordOptions carries the optional linkage payload of a ledger entry.
type RecordOptions struct {
	ExternalTxID  string
	Address       string
	MinerTypeID   string
	RelatedUserID string
	Description   string
}

// Begin opens a serializable transaction. Multi-row monetary mutations run
// inside one of these so the unit commits or rolls back as a whole.
func (s *Service) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, apperr.Store(err)
	}
	return tx, nil
}

// WithTimeout bounds a store round-trip; callers wrap each operation's
// context so no call blocks indefinitely.
func (s *Service) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// RecordTransaction appends a ledger entry. When opts.ExternalTxID is set
// (deposits) and an entry with that key already exists, the existing record
// is returned unchanged; the unique index linearizes concurrent creators and
// the race loser lands in that branch.
func (s *Service) RecordTransaction(ctx context.Context, tx pgx.Tx, userID string, kind types.TransactionKind, amount decimal.Decimal, status types.TransactionStatus, opts RecordOptions) (Transaction, error) {
	if !kind.Valid() {
		return Transaction{}, apperr.Validation("unknown transaction kind")
	}
	if !status.Valid() {
		return Transaction{}, apperr.Validation("unknown transaction status")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return Transaction{}, apperr.Validation("amount must be positive")
	}
	out := Transaction{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		Status:        status,
		ExternalTxID:  opts.ExternalTxID,
		Address:       opts.Address,
		MinerTypeID:   opts.MinerTypeID,
		RelatedUserID: opts.RelatedUserID,
		Description:   opts.Description,
	}
	if opts.ExternalTxID != "" {
		err := tx.QueryRow(ctx, `
			INSERT INTO transactions (user_id, kind, amount, status, external_tx_id, address, miner_type_id, related_user_id, description)
			VALUES ($1, $2, $3, $4, $5, nullif($6, ''), nullif($7, '')::uuid, nullif($8, '')::uuid, $9)
			ON CONFLICT (external_tx_id) DO NOTHING
			RETURNING id::text, created_at
		`, userID, string(kind), amount, string(status), opts.ExternalTxID, opts.Address, opts.MinerTypeID, opts.RelatedUserID, opts.Description).Scan(&out.ID, &out.CreatedAt)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, apperr.Store(err)
		}
		existing, found, lookupErr := s.FindByExternalID(ctx, tx, opts.ExternalTxID)
		if lookupErr != nil {
			return Transaction{}, lookupErr
		}
		if !found {
			return Transaction{}, apperr.Invariant("dedup key vanished between insert and lookup")
		}
		return existing, nil
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, kind, amount, status, address, miner_type_id, related_user_id, description)
		VALUES ($1, $2, $3, $4, nullif($5, ''), nullif($6, '')::uuid, nullif($7, '')::uuid, $8)
		RETURNING id::text, created_at
	`, userID, string(kind), amount, string(status), opts.Address, opts.MinerTypeID, opts.RelatedUserID, opts.Description).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return Transaction{}, apperr.Store(err)
	}
	return out, nil
}

// FindByExternalID loads and locks the deposit row for a dedup key.
func (s *Service) FindByExternalID(ctx context.Context, tx pgx.Tx, externalTxID string) (Transaction, bool, error) {
	var out Transaction
	var kind, status string
	err := tx.QueryRow(ctx, `
		SELECT id::text, user_id::text, kind, amount, status,
		       COALESCE(external_tx_id, ''), COALESCE(address, ''),
		       COALESCE(miner_type_id::text, ''), COALESCE(related_user_id::text, ''),
		       COALESCE(description, ''), created_at
		FROM transactions
		WHERE external_tx_id = $1
		FOR UPDATE
	`, externalTxID).Scan(
		&out.ID, &out.UserID, &kind, &out.Amount, &status,
		&out.ExternalTxID, &out.Address,
		&out.MinerTypeID, &out.RelatedUserID,
		&out.Description, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, apperr.Store(err)
	}
	out.Kind = types.TransactionKind(kind)
	out.Status = types.TransactionStatus(status)
	return out, true, nil
}

// UpdateStatus transitions a ledger entry. Amount and kind are write-once.
func (s *Service) UpdateStatus(ctx context.Context, tx pgx.Tx, txID string, status types.TransactionStatus) error {
	if !status.Valid() {
		return apperr.Validation("unknown transaction status")
	}
	cmd, err := tx.Exec(ctx, `UPDATE transactions SET status = $2 WHERE id = $1`, txID, string(status))
	if err != nil {
		return apperr.Store(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("transaction not found")
	}
	return nil
}

// LockUser pins the user row for the remainder of the transaction and
// returns its referral lineage, serializing every balance mutation for
// that user.
func (s *Service) LockUser(ctx context.Context, tx pgx.Tx, userID string) (referredBy string, err error) {
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(referred_by::text, '')
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&referredBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("user not found")
		}
		return "", apperr.Store(err)
	}
	return referredBy, nil
}

// CreditUser adds a deposit credit to the stored balance.
func (s *Service) CreditUser(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return apperr.Validation("amount must be positive")
	}
	cmd, err := tx.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, userID, amount)
	if err != nil {
		return apperr.Store(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// DebitUser subtracts from the stored balance, guarded so it can never go
// negative. The guard plus serializable isolation is the no-lost-update
// mechanism for concurrent debits.
func (s *Service) DebitUser(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return apperr.Validation("amount must be positive")
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance - $2
		WHERE id = $1
		  AND balance >= $2
	`, userID, amount)
	if err != nil {
		return apperr.Store(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return apperr.Store(err)
		}
		if !exists {
			return apperr.NotFound("user not found")
		}
		return apperr.InsufficientFunds("insufficient balance")
	}
	return nil
}

// AddProfit applies an accrual credit: balance and the monotonic
// total_profit counter move together.
func (s *Service) AddProfit(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return apperr.Validation("amount must be positive")
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance + $2,
		    total_profit = total_profit + $2
		WHERE id = $1
	`, userID, amount)
	if err != nil {
		return apperr.Store(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// AddReferralEarnings applies a commission credit: balance and the monotonic
// referral_earnings counter move together.
func (s *Service) AddReferralEarnings(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return apperr.Validation("amount must be positive")
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance + $2,
		    referral_earnings = referral_earnings + $2
		WHERE id = $1
	`, userID, amount)
	if err != nil {
		return apperr.Store(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

type BalanceSnapshot struct {
	Balance          decimal.Decimal `json:"balance"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
}

// BalanceOf is a point read of the stored balance columns; the ledger is
// never summed on this path.
func (s *Service) BalanceOf(ctx context.Context, userID string) (BalanceSnapshot, error) {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()
	var out BalanceSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT balance, total_profit, referral_earnings
		FROM users
		WHERE id = $1
	`, userID).Scan(&out.Balance, &out.TotalProfit, &out.ReferralEarnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BalanceSnapshot{}, apperr.NotFound("user not found")
		}
		return BalanceSnapshot{}, apperr.Store(err)
	}
	return out, nil
}

type ReconcileReport struct {
	UserID         string          `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	LedgerCredits  decimal.Decimal `json:"ledger_credits"`
	LedgerDebits   decimal.Decimal `json:"ledger_debits"`
	ReservedDebits decimal.Decimal `json:"reserved_debits"`
	LedgerNet      decimal.Decimal `json:"ledger_net"`
	Consistent     bool            `json:"consistent"`
}

// ReconcileUser checks the core invariant: at a quiescent point the stored
// balance equals completed credits minus completed debits. Pending
// withdrawals have already reserved funds, so they count as debits here.
// A mismatch is an invariant violation and means the affected user must be
// investigated before further operations.
func (s *Service) ReconcileUser(ctx context.Context, userID string) (ReconcileReport, error) {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return ReconcileReport{}, apperr.Store(err)
	}
	defer tx.Rollback(ctx)

	report := ReconcileReport{UserID: userID}
	err = tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1`, userID).Scan(&report.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReconcileReport{}, apperr.NotFound("user not found")
		}
		return ReconcileReport{}, apperr.Store(err)
	}
	err = tx.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND kind IN ('deposit', 'accrual', 'referral_commission')), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND kind IN ('withdrawal', 'purchase')), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending' AND kind = 'withdrawal'), 0)
		FROM transactions
		WHERE user_id = $1
	`, userID).Scan(&report.LedgerCredits, &report.LedgerDebits, &report.ReservedDebits)
	if err != nil {
		return ReconcileReport{}, apperr.Store(err)
	}
	report.LedgerNet = report.LedgerCredits.Sub(report.LedgerDebits).Sub(report.ReservedDebits)
	report.Consistent = report.Balance.Equal(report.LedgerNet)
	if !report.Consistent {
		return report, apperr.Invariant("stored balance disagrees with completed ledger sum")
	}
	return report, nil
}
