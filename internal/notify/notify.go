package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Kind string

const (
	KindDepositConfirmed   Kind = "deposit_confirmed"
	KindMinerPurchase      Kind = "miner_purchase"
	KindReferralCommission Kind = "referral_commission"
	KindDailyAccrual       Kind = "daily_accrual"
	KindWithdrawalRequest  Kind = "withdrawal_requested"
)

type Event struct {
	UserID string
	Kind   Kind
	Amount decimal.Decimal
	Detail string
}

// Notifier is the outbound notification collaborator. Delivery happens after
// commit; a failed delivery never affects the financial mutation it describes.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

type Disabled struct{}

func NewDisabled() *Disabled { return &Disabled{} }

func (d *Disabled) Notify(ctx context.Context, evt Event) error { return nil }

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, evt Event) error {
	n.log.Info("notification",
		zap.String("user_id", evt.UserID),
		zap.String("kind", string(evt.Kind)),
		zap.String("amount", evt.Amount.StringFixed(2)),
		zap.String("detail", evt.Detail),
	)
	return nil
}

// Dispatch fires a notification in the background with a bounded deadline.
// Errors are logged and dropped.
func Dispatch(n Notifier, log *zap.Logger, evt Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.Notify(ctx, evt); err != nil {
			log.Warn("notification delivery failed",
				zap.String("user_id", evt.UserID),
				zap.String("kind", string(evt.Kind)),
				zap.Error(err),
			)
		}
	}()
}
