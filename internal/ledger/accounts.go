package ledger

import "fmt"

// Account codes in the fixed chart. Created once at initialization,
// never deleted; balances change only through posted lines.
const (
	AccountUserWalletLiability = "USER_WALLET_LIABILITY"
	AccountBank                = "BANK"
	AccountBonusPool           = "BONUS_POOL"
	AccountInvestmentPool      = "INVESTMENT_POOL"
	AccountRefundClearing      = "REFUND_CLEARING"
	AccountChargebackClearing  = "CHARGEBACK_CLEARING"
	AccountTDSPayable          = "TDS_PAYABLE"
	AccountSubscriptionRevenue = "SUBSCRIPTION_REVENUE"
	AccountReferralPool        = "REFERRAL_POOL"
	AccountPrizePool           = "PRIZE_POOL"
	AccountProfitPool          = "PROFIT_POOL"
)

var chart = []Account{
	{Code: AccountUserWalletLiability, Name: "User wallet liability", Nature: Liability},
	{Code: AccountBank, Name: "Bank settlement", Nature: Asset},
	{Code: AccountBonusPool, Name: "Bonus pool", Nature: Expense},
	{Code: AccountInvestmentPool, Name: "Investment pool", Nature: Liability},
	{Code: AccountRefundClearing, Name: "Refund clearing", Nature: Asset},
	{Code: AccountChargebackClearing, Name: "Chargeback clearing", Nature: Liability},
	{Code: AccountTDSPayable, Name: "TDS payable", Nature: Liability},
	{Code: AccountSubscriptionRevenue, Name: "Subscription revenue", Nature: Income},
	{Code: AccountReferralPool, Name: "Referral pool", Nature: Expense},
	{Code: AccountPrizePool, Name: "Lucky draw prize pool", Nature: Expense},
	{Code: AccountProfitPool, Name: "Profit share pool", Nature: Expense},
}

var chartByCode = func() map[string]Account {
	m := make(map[string]Account, len(chart))
	for _, a := range chart {
		m[a.Code] = a
	}
	return m
}()

// ChartOfAccounts returns the fixed chart in its canonical order.
func ChartOfAccounts() []Account {
	out := make([]Account, len(chart))
	copy(out, chart)
	return out
}

// AccountByCode resolves a chart account.
func AccountByCode(code string) (Account, error) {
	a, ok := chartByCode[code]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
	}
	return a, nil
}
