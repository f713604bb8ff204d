package wallet

import (
	"context"
	"time"

	"niveshpay.org/internal/ledger"
)

// Checker recomputes both sides of the books independently: the sum of
// all wallet balances and the USER_WALLET_LIABILITY balance. Intended for
// background verification and tests; it is O(n) over wallets and lines
// and must not run inside a request path.
type Checker struct {
	Wallets Totaler
	Ledger  ledger.Service
}

// Report carries both totals in paise so a mismatch can be diagnosed.
type Report struct {
	Holds       bool         `json:"holds"`
	WalletTotal ledger.Money `json:"wallet_total"`
	LedgerTotal ledger.Money `json:"ledger_total"`
	CheckedAt   time.Time    `json:"checked_at"`
}

// Verify recomputes and compares the two totals.
func (c Checker) Verify(ctx context.Context) (Report, error) {
	walletTotal, err := c.Wallets.WalletTotal(ctx)
	if err != nil {
		return Report{}, err
	}
	ledgerTotal, err := c.Ledger.BalanceOf(ctx, ledger.AccountUserWalletLiability)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Holds:       walletTotal == ledgerTotal,
		WalletTotal: walletTotal,
		LedgerTotal: ledgerTotal,
		CheckedAt:   time.Now().UTC(),
	}, nil
}
