package wallet

import (
	"errors"
	"time"

	"niveshpay.org/internal/ledger"
)

// Wallet is one user's spendable money plus funds held for pending
// withdrawals. Mutated only through a Service implementation; every
// balance change is mirrored by a balanced ledger entry.
type Wallet struct {
	UserID    string       `json:"user_id"`
	Available ledger.Money `json:"available"`
	Locked    ledger.Money `json:"locked"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Total returns available+locked, the wallet's contribution to the
// liability account.
func (w Wallet) Total() (ledger.Money, error) {
	return w.Available.Add(w.Locked)
}

var (
	ErrNotFound            = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrInsufficientLocked  = errors.New("insufficient locked balance")
	ErrLockTimeout         = errors.New("wallet lock wait timed out")
)

// WithdrawOptions carries the optional knobs of a withdrawal.
type WithdrawOptions struct {
	// Fee diverts this portion of the amount to the fee route's account
	// (TDS_PAYABLE by default) inside the same atomic entry. The wallet
	// still decrements by the full amount.
	Fee ledger.Money
	// FeeType selects the routing for the fee leg. Zero value means
	// TDS_DEDUCTION.
	FeeType ledger.TxType
	// FromLocked draws the amount from the locked balance instead of the
	// available one (withdrawal execution after LockFunds).
	FromLocked bool
}

func (o WithdrawOptions) feeType() ledger.TxType {
	if o.FeeType == "" {
		return ledger.TxTDSDeduction
	}
	return o.FeeType
}
