package referral

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
)

type Service struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewService(pool *pgxpool.Pool, storeTimeout time.Duration) *Service {
	return &Service{pool: pool, timeout: storeTimeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

type Info struct {
	Code          string          `json:"code"`
	TotalReferred int             `json:"total_referred"`
	Rewarded      int             `json:"rewarded"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

func (s *Service) Info(ctx context.Context, userID string) (Info, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var info Info
	err := s.pool.QueryRow(ctx, `
		SELECT referral_code, referral_earnings
		FROM users
		WHERE id = $1
	`, userID).Scan(&info.Code, &info.TotalEarnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Info{}, apperr.NotFound("user not found")
		}
		return Info{}, apperr.Store(err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'rewarded')
		FROM referrals
		WHERE referrer_id = $1
	`, userID).Scan(&info.TotalReferred, &info.Rewarded)
	if err != nil {
		return Info{}, apperr.Store(err)
	}
	return info, nil
}

type Entry struct {
	ReferredID string          `json:"referred_id"`
	Email      string          `json:"email"`
	Status     string          `json:"status"`
	Commission decimal.Decimal `json:"commission"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT r.referred_id, u.email, r.status, COALESCE(r.commission, 0), r.created_at
		FROM referrals r
		JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Store(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ReferredID, &e.Email, &e.Status, &e.Commission, &e.CreatedAt); err != nil {
			return nil, apperr.Store(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store(err)
	}
	return entries, nil
}

// ValidateCode resolves a referral code to its owner. A missing code is not
// an error for registration, so the caller gets a found flag instead.
func (s *Service) ValidateCode(ctx context.Context, code string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ownerID string
	err := s.pool.QueryRow(ctx, `
		SELECT id
		FROM users
		WHERE referral_code = $1
	`, code).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperr.Store(err)
	}
	return ownerID, true, nil
}
