package wallet

import (
	"context"
	"fmt"

	"niveshpay.org/internal/ledger"
)

// Service is the orchestration layer over wallets and the ledger. Deposit
// and Withdraw mutate the wallet and post the matching double entry as
// one atomic unit; LockFunds and ReleaseLockedFunds reclassify between
// available and locked without touching the liability total.
type Service interface {
	Deposit(ctx context.Context, userID string, amount ledger.Money, txType ledger.TxType, description, reference string) (Wallet, error)
	Withdraw(ctx context.Context, userID string, amount ledger.Money, txType ledger.TxType, description, reference string, opts WithdrawOptions) (Wallet, error)
	LockFunds(ctx context.Context, userID string, amount ledger.Money) (Wallet, error)
	ReleaseLockedFunds(ctx context.Context, userID string, amount ledger.Money) (Wallet, error)
	GetWallet(ctx context.Context, userID string) (Wallet, error)
}

// Totaler is implemented by stores that can independently sum every
// wallet balance; the invariant checker depends on it.
type Totaler interface {
	WalletTotal(ctx context.Context) (ledger.Money, error)
}

// BuildDepositEntry assembles the balanced entry for a deposit-side
// mutation: debit the routed source account, credit the wallet liability.
func BuildDepositEntry(txType ledger.TxType, amount ledger.Money, description, reference string) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, ledger.ErrInvalidAmount
	}
	route, err := ledger.RouteFor(txType)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !route.CreditsWallet() {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrRouteMismatch, txType)
	}
	return ledger.Entry{
		Type:        txType,
		Reference:   reference,
		Description: description,
		Postings: []ledger.Posting{
			{AccountCode: route.Counter, Direction: ledger.Debit, Amount: amount},
			{AccountCode: ledger.AccountUserWalletLiability, Direction: ledger.Credit, Amount: amount},
		},
	}, nil
}

// BuildWithdrawEntry assembles the balanced entry for a withdrawal-side
// mutation: debit the wallet liability for the full amount, credit the
// routed destination. A non-zero fee splits the credit side between the
// destination and the fee route's account; each leg still balances
// against the single liability debit.
func BuildWithdrawEntry(txType ledger.TxType, amount ledger.Money, description, reference string, opts WithdrawOptions) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, ledger.ErrInvalidAmount
	}
	if opts.Fee.IsNegative() || opts.Fee >= amount {
		return ledger.Entry{}, ledger.ErrInvalidAmount
	}
	route, err := ledger.RouteFor(txType)
	if err != nil {
		return ledger.Entry{}, err
	}
	if route.CreditsWallet() {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrRouteMismatch, txType)
	}

	postings := []ledger.Posting{
		{AccountCode: ledger.AccountUserWalletLiability, Direction: ledger.Debit, Amount: amount},
	}
	principal, err := amount.Sub(opts.Fee)
	if err != nil {
		return ledger.Entry{}, err
	}
	postings = append(postings, ledger.Posting{
		AccountCode: route.Counter, Direction: ledger.Credit, Amount: principal,
	})
	if opts.Fee.IsPositive() {
		feeRoute, err := ledger.RouteFor(opts.feeType())
		if err != nil {
			return ledger.Entry{}, err
		}
		if feeRoute.CreditsWallet() {
			return ledger.Entry{}, fmt.Errorf("%w: fee type %s", ledger.ErrRouteMismatch, opts.feeType())
		}
		postings = append(postings, ledger.Posting{
			AccountCode: feeRoute.Counter, Direction: ledger.Credit, Amount: opts.Fee,
		})
	}
	return ledger.Entry{
		Type:        txType,
		Reference:   reference,
		Description: description,
		Postings:    postings,
	}, nil
}
