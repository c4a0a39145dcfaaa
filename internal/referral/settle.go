package referral

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/types"
)

// Settler pays the one-shot referral commission inside the buyer's purchase
// transaction, so the commission and the purchase commit or roll back
// together.
type Settler struct {
	rate   decimal.Decimal
	ledger *ledger.Service
}

func NewSettler(rate decimal.Decimal, svc *ledger.Service) *Settler {
	return &Settler{rate: rate, ledger: svc}
}

// Commission is rate * amount rounded to cents.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

type Payout struct {
	ReferrerID    string          `json:"referrer_id"`
	Commission    decimal.Decimal `json:"commission"`
	TransactionID string          `json:"transaction_id"`
}

// SettleFirstPurchase marks the buyer's referral rewarded and credits the
// referrer. The UPDATE is the one-shot latch: the first purchase flips the
// row to rewarded and every later call matches zero rows. Returns false when
// the buyer has no referral row or it was already rewarded.
func (s *Settler) SettleFirstPurchase(ctx context.Context, tx pgx.Tx, buyerID string, amount decimal.Decimal) (Payout, bool, error) {
	commission := Commission(amount, s.rate)
	if !commission.GreaterThan(decimal.Zero) {
		return Payout{}, false, nil
	}

	var referrerID string
	err := tx.QueryRow(ctx, `
		UPDATE referrals
		SET status = 'rewarded', commission = $2, rewarded_at = NOW()
		WHERE referred_id = $1
		  AND status <> 'rewarded'
		RETURNING referrer_id
	`, buyerID, commission).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payout{}, false, nil
		}
		return Payout{}, false, apperr.Store(err)
	}

	if err := s.ledger.AddReferralEarnings(ctx, tx, referrerID, commission); err != nil {
		return Payout{}, false, err
	}
	record, err := s.ledger.RecordTransaction(ctx, tx, referrerID,
		types.TransactionKindReferralCommission, commission, types.TransactionStatusCompleted,
		ledger.RecordOptions{
			RelatedUserID: buyerID,
			Description:   "Referral commission",
		})
	if err != nil {
		return Payout{}, false, err
	}
	return Payout{ReferrerID: referrerID, Commission: commission, TransactionID: record.ID}, true, nil
}
