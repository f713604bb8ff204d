package ledger

import (
	"fmt"
	"sort"
)

// TxType tags every ledger line with the business flow that produced it.
// The set is closed: adding a type without a routing entry fails at
// startup via ValidateRouting, not silently at posting time.
type TxType string

const (
	TxDeposit             TxType = "DEPOSIT"
	TxWithdrawal          TxType = "WITHDRAWAL"
	TxBonusCredit         TxType = "BONUS_CREDIT"
	TxInvestment          TxType = "INVESTMENT"
	TxRefund              TxType = "REFUND"
	TxChargeback          TxType = "CHARGEBACK"
	TxTDSDeduction        TxType = "TDS_DEDUCTION"
	TxSubscriptionPayment TxType = "SUBSCRIPTION_PAYMENT"
	TxReferralCommission  TxType = "REFERRAL_COMMISSION"
	TxLuckyDrawPrize      TxType = "LUCKY_DRAW_PRIZE"
	TxProfitShare         TxType = "PROFIT_SHARE"
)

// Route fixes, for one transaction type, the account money comes from or
// goes to and which side of the pair the user wallet leg occupies. This
// map is the single source of truth for ledger routing; callers never
// pick accounts themselves.
type Route struct {
	Counter    string    // counter account code
	WalletSide Direction // side of the USER_WALLET_LIABILITY leg
}

// CreditsWallet reports whether the route pays into the wallet.
func (r Route) CreditsWallet() bool { return r.WalletSide == Credit }

var routes = map[TxType]Route{
	TxDeposit:            {Counter: AccountBank, WalletSide: Credit},
	TxBonusCredit:        {Counter: AccountBonusPool, WalletSide: Credit},
	TxRefund:             {Counter: AccountRefundClearing, WalletSide: Credit},
	TxReferralCommission: {Counter: AccountReferralPool, WalletSide: Credit},
	TxLuckyDrawPrize:     {Counter: AccountPrizePool, WalletSide: Credit},
	TxProfitShare:        {Counter: AccountProfitPool, WalletSide: Credit},

	TxWithdrawal:          {Counter: AccountBank, WalletSide: Debit},
	TxInvestment:          {Counter: AccountInvestmentPool, WalletSide: Debit},
	TxChargeback:          {Counter: AccountChargebackClearing, WalletSide: Debit},
	TxTDSDeduction:        {Counter: AccountTDSPayable, WalletSide: Debit},
	TxSubscriptionPayment: {Counter: AccountSubscriptionRevenue, WalletSide: Debit},
}

// RouteFor resolves the routing for a transaction type. An unmapped type
// is a configuration defect: the caller must abort, never skip posting.
func RouteFor(t TxType) (Route, error) {
	r, ok := routes[t]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownTransactionType, t)
	}
	return r, nil
}

// TxTypes returns every routed transaction type, sorted.
func TxTypes() []TxType {
	out := make([]TxType, 0, len(routes))
	for t := range routes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateRouting checks every route against the chart of accounts so a
// dangling route fails at startup instead of mid-operation.
func ValidateRouting() error {
	for t, r := range routes {
		if _, err := AccountByCode(r.Counter); err != nil {
			return fmt.Errorf("route %s: %w", t, err)
		}
	}
	return nil
}
