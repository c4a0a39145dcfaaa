package accrual

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/events"
	"cryptoprofit/internal/ledger"
	"cryptoprofit/internal/notify"
	"cryptoprofit/internal/types"
)

type Runner struct {
	pool     *pgxpool.Pool
	ledger   *ledger.Service
	notifier notify.Notifier
	bus      *events.Bus
	log      *zap.Logger
	timeout  time.Duration
}

func NewRunner(pool *pgxpool.Pool, svc *ledger.Service, notifier notify.Notifier, bus *events.Bus, log *zap.Logger, storeTimeout time.Duration) *Runner {
	return &Runner{pool: pool, ledger: svc, notifier: notifier, bus: bus, log: log, timeout: storeTimeout}
}

type Summary struct {
	Positions int             `json:"positions"`
	Users     int             `json:"users"`
	Total     decimal.Decimal `json:"total"`
	RanAt     time.Time       `json:"ran_at"`
}

// Run executes one accrual batch: every active position earns its daily
// profit, and each user gets one completed accrual record for their sum.
// The whole batch is a single serializable transaction; positions are
// locked in id order so concurrent runs queue rather than deadlock.
//
// Run is not internally guarded against being scheduled twice in one day.
// The scheduler owns cadence; each invocation pays one day of profit.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Summary{}, apperr.Store(err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, user_id, principal, daily_rate
		FROM positions
		WHERE active = TRUE
		  AND principal > 0
		ORDER BY id
		FOR UPDATE
	`)
	if err != nil {
		return Summary{}, apperr.Store(err)
	}
	var positions []PositionSnapshot
	for rows.Next() {
		var p PositionSnapshot
		if err := rows.Scan(&p.ID, &p.UserID, &p.Principal, &p.Rate); err != nil {
			rows.Close()
			return Summary{}, apperr.Store(err)
		}
		positions = append(positions, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Summary{}, apperr.Store(err)
	}

	run := ComputeRun(positions)
	for _, p := range positions {
		increment := run.Increments[p.ID]
		if _, err := tx.Exec(ctx, `
			UPDATE positions
			SET accrued_total = accrued_total + $2,
			    last_accrual_at = $3
			WHERE id = $1
		`, p.ID, increment, now); err != nil {
			return Summary{}, apperr.Store(err)
		}
	}

	total := decimal.Zero
	for _, credit := range run.Credits {
		if err := r.ledger.AddProfit(ctx, tx, credit.UserID, credit.Amount); err != nil {
			return Summary{}, err
		}
		if _, err := r.ledger.RecordTransaction(ctx, tx, credit.UserID,
			types.TransactionKindAccrual, credit.Amount, types.TransactionStatusCompleted,
			ledger.RecordOptions{
				Description: fmt.Sprintf("Daily mining profit (%s)", now.Format("2006-01-02")),
			}); err != nil {
			return Summary{}, err
		}
		total = total.Add(credit.Amount)
	}

	if err := tx.Commit(ctx); err != nil {
		return Summary{}, apperr.Store(err)
	}

	for _, credit := range run.Credits {
		notify.Dispatch(r.notifier, r.log, notify.Event{
			UserID: credit.UserID,
			Kind:   notify.KindDailyAccrual,
			Amount: credit.Amount,
			Detail: "Daily mining profit",
		})
		r.bus.Publish(events.Event{Type: events.TypeAccrual, UserID: credit.UserID, Data: credit})
	}

	summary := Summary{Positions: len(positions), Users: len(run.Credits), Total: total, RanAt: now}
	r.log.Info("accrual run complete",
		zap.Int("positions", summary.Positions),
		zap.Int("users", summary.Users),
		zap.String("total", summary.Total.StringFixed(2)),
	)
	return summary, nil
}

// StartWorker runs accrual batches on a fixed interval until ctx is done.
func (r *Runner) StartWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Run(ctx); err != nil {
					r.log.Error("accrual run failed", zap.Error(err))
				}
			}
		}
	}()
}
