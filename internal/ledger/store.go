package ledger

import (
	"context"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/types"
)

type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 10
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// History lists a user's ledger entries newest-first, optionally filtered by
// kind. The total count rides along for pagination.
func (s *Service) History(ctx context.Context, userID string, kind types.TransactionKind, page Page) ([]Transaction, int, error) {
	if kind != "" && !kind.Valid() {
		return nil, 0, apperr.Validation("unknown transaction kind")
	}
	page = page.normalize()
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1
		  AND ($2 = '' OR kind = $2)
	`, userID, string(kind)).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id::text, kind, amount, status,
		       COALESCE(external_tx_id, ''), COALESCE(address, ''),
		       COALESCE(miner_type_id::text, ''), COALESCE(related_user_id::text, ''),
		       COALESCE(description, ''), created_at
		FROM transactions
		WHERE user_id = $1
		  AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, string(kind), page.Limit, page.Offset)
	if err != nil {
		return nil, 0, apperr.Store(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var kindStr, statusStr string
		if err := rows.Scan(
			&t.ID, &t.UserID, &kindStr, &t.Amount, &statusStr,
			&t.ExternalTxID, &t.Address,
			&t.MinerTypeID, &t.RelatedUserID,
			&t.Description, &t.CreatedAt,
		); err != nil {
			return nil, 0, apperr.Store(err)
		}
		t.Kind = types.TransactionKind(kindStr)
		t.Status = types.TransactionStatus(statusStr)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Store(err)
	}
	return out, total, nil
}
