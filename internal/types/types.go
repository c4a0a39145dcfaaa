package types

type TransactionKind string

type TransactionStatus string

type ReferralStatus string

const (
	TransactionKindDeposit            TransactionKind = "deposit"
	TransactionKindWithdrawal         TransactionKind = "withdrawal"
	TransactionKindAccrual            TransactionKind = "accrual"
	TransactionKindPurchase           TransactionKind = "purchase"
	TransactionKindReferralCommission TransactionKind = "referral_commission"
)

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

const (
	ReferralStatusPending  ReferralStatus = "pending"
	ReferralStatusActive   ReferralStatus = "active"
	ReferralStatusRewarded ReferralStatus = "rewarded"
)

// IsCredit reports whether a completed transaction of this kind increases the
// owning user's balance. Kind implies sign; amounts are stored unsigned.
func (k TransactionKind) IsCredit() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindAccrual, TransactionKindReferralCommission:
		return true
	}
	return false
}

func (k TransactionKind) IsDebit() bool {
	switch k {
	case TransactionKindWithdrawal, TransactionKindPurchase:
		return true
	}
	return false
}

func (k TransactionKind) Valid() bool {
	return k.IsCredit() || k.IsDebit()
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}
