package miners

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/referral"
	"cryptoprofit/internal/types"
)

type MinerType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
	MinPurchase decimal.Decimal `json:"min_purchase"`
	MaxPurchase decimal.Decimal `json:"max_purchase"`
	Enabled     bool            `json:"enabled"`
}

type Position struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	MinerTypeID   string          `json:"miner_type_id"`
	Principal     decimal.Decimal `json:"principal"`
	DailyRate     decimal.Decimal `json:"daily_rate"`
	Active        bool            `json:"active"`
	AccruedTotal  decimal.Decimal `json:"accrued_total"`
	LastAccrualAt *time.Time      `json:"last_accrual_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Service struct {
	pool    *pgxpool.Pool
	ledger  *ledger.Service
	settler *referral.Settler
	timeout time.Duration
}

func NewService(pool *pgxpool.Pool, svc *ledger.Service, settler *referral.Settler, storeTimeout time.Duration) *Service {
	return &Service{pool: pool, ledger: svc, settler: settler, timeout: storeTimeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) Catalog(ctx context.Context) ([]MinerType, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, daily_rate, min_purchase, max_purchase, enabled
		FROM miner_types
		WHERE enabled = TRUE
		ORDER BY min_purchase ASC
	`)
	if err != nil {
		return nil, apperr.Store(err)
	}
	defer rows.Close()

	catalog := []MinerType{}
	for rows.Next() {
		var mt MinerType
		if err := rows.Scan(&mt.ID, &mt.Name, &mt.DailyRate, &mt.MinPurchase, &mt.MaxPurchase, &mt.Enabled); err != nil {
			return nil, apperr.Store(err)
		}
		catalog = append(catalog, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(err)
	}
	return catalog, nil
}

func (s *Service) ListPositions(ctx context.Context, userID string) ([]Position, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, miner_type_id, principal, daily_rate, active, accrued_total, last_accrual_at, created_at
		FROM positions
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	defer rows.Close()

	positions := []Position{}
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.UserID, &p.MinerTypeID, &p.Principal, &p.DailyRate, &p.Active, &p.AccruedTotal, &p.LastAccrualAt, &p.CreatedAt); err != nil {
			return nil, apperr.Store(err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(err)
	}
	return positions, nil
}

type PurchaseResult struct {
	Position    Position           `json:"position"`
	Transaction ledger.Transaction `json:"transaction"`
	Referral    *referral.Payout   `json:"referral,omitempty"`
}

// validatePurchase checks a rounded purchase amount against the catalog row.
func validatePurchase(mt MinerType, amount decimal.Decimal) error {
	if !mt.Enabled {
		return apperr.Validation("miner type is disabled")
	}
	if amount.LessThan(mt.MinPurchase) {
		return apperr.Newf(apperr.CodeValidation, "minimum purchase is %s", mt.MinPurchase.StringFixed(2))
	}
	if mt.MaxPurchase.GreaterThan(decimal.Zero) && amount.GreaterThan(mt.MaxPurchase) {
		return apperr.Newf(apperr.CodeValidation, "maximum purchase is %s", mt.MaxPurchase.StringFixed(2))
	}
	return nil
}

// Purchase debits the buyer, upserts the position for the miner type, and
// settles the one-shot referral commission, all in one serializable
// transaction. The purchase record and the commission record land together
// or not at all.
//
// A repeat purchase of the same miner type adds to the existing principal;
// the position keeps the rate it was opened with.
func (s *Service) Purchase(ctx context.Context, userID, minerTypeID string, amount decimal.Decimal) (PurchaseResult, error) {
	amount = amount.Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return PurchaseResult{}, apperr.Validation("amount must be positive")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return PurchaseResult{}, apperr.Store(err)
	}
	defer tx.Rollback(ctx)

	var mt MinerType
	err = tx.QueryRow(ctx, `
		SELECT id, name, daily_rate, min_purchase, max_purchase, enabled
		FROM miner_types
		WHERE id = $1
	`, minerTypeID).Scan(&mt.ID, &mt.Name, &mt.DailyRate, &mt.MinPurchase, &mt.MaxPurchase, &mt.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseResult{}, apperr.NotFound("miner type not found")
		}
		return PurchaseResult{}, apperr.Store(err)
	}
	if err := validatePurchase(mt, amount); err != nil {
		return PurchaseResult{}, err
	}

	if _, err := s.ledger.LockUser(ctx, tx, userID); err != nil {
		return PurchaseResult{}, err
	}
	if err := s.ledger.DebitUser(ctx, tx, userID, amount); err != nil {
		return PurchaseResult{}, err
	}

	var pos Position
	err = tx.QueryRow(ctx, `
		INSERT INTO positions (user_id, miner_type_id, principal, daily_rate, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (user_id, miner_type_id) DO UPDATE
		SET principal = positions.principal + EXCLUDED.principal,
		    active = TRUE
		RETURNING id, user_id, miner_type_id, principal, daily_rate, active, accrued_total, last_accrual_at, created_at
	`, userID, minerTypeID, amount, mt.DailyRate).Scan(
		&pos.ID, &pos.UserID, &pos.MinerTypeID, &pos.Principal, &pos.DailyRate,
		&pos.Active, &pos.AccruedTotal, &pos.LastAccrualAt, &pos.CreatedAt,
	)
	if err != nil {
		return PurchaseResult{}, apperr.Store(err)
	}

	record, err := s.ledger.RecordTransaction(ctx, tx, userID,
		types.TransactionKindPurchase, amount, types.TransactionStatusCompleted,
		ledger.RecordOptions{
			MinerTypeID: minerTypeID,
			Description: fmt.Sprintf("Purchase of %s", mt.Name),
		})
	if err != nil {
		return PurchaseResult{}, err
	}

	result := PurchaseResult{Position: pos, Transaction: record}
	payout, paid, err := s.settler.SettleFirstPurchase(ctx, tx, userID, amount)
	if err != nil {
		return PurchaseResult{}, err
	}
	if paid {
		result.Referral = &payout
	}

	if err := tx.Commit(ctx); err != nil {
		return PurchaseResult{}, apperr.Store(err)
	}
	return result, nil
}

// Toggle pauses or resumes accrual on one of the user's positions.
func (s *Service) Toggle(ctx context.Context, userID, positionID string, active bool) (Position, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var pos Position
	err := s.pool.QueryRow(ctx, `
		UPDATE positions
		SET active = $3
		WHERE id = $1
		  AND user_id = $2
		RETURNING id, user_id, miner_type_id, principal, daily_rate, active, accrued_total, last_accrual_at, created_at
	`, positionID, userID, active).Scan(
		&pos.ID, &pos.UserID, &pos.MinerTypeID, &pos.Principal, &pos.DailyRate,
		&pos.Active, &pos.AccruedTotal, &pos.LastAccrualAt, &pos.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Position{}, apperr.NotFound("position not found")
		}
		return Position{}, apperr.Store(err)
	}
	return pos, nil
}
