package sim

import (
	"math/rand"
	"strconv"
	"time"

	"niveshpay.org/internal/ledger"
)

// OpKind is the wallet operation a generated step performs.
type OpKind string

const (
	OpDeposit  OpKind = "deposit"
	OpWithdraw OpKind = "withdraw"
	OpLock     OpKind = "lock"
	OpRelease  OpKind = "release"
)

// Op is one generated wallet mutation.
type Op struct {
	Kind      OpKind
	UserID    string
	Type      ledger.TxType
	Amount    ledger.Money
	Fee       ledger.Money
	Reference string
}

// Scenario describes a simulated user population and the transaction
// mix to run against it.
type Scenario struct {
	Name        string
	Users       []string
	SeedDeposit ledger.Money
	MaxAmount   ledger.Money
}

// SubscriptionPlatformScenario models a small investor population with
// regular deposits, plan purchases, bonuses and payouts.
func SubscriptionPlatformScenario() Scenario {
	return Scenario{
		Name:        "SubscriptionPlatform",
		Users:       []string{"inv-aarav", "inv-diya", "inv-kabir", "inv-meera", "inv-rohan"},
		SeedDeposit: 1_000_000,
		MaxAmount:   50_000,
	}
}

// Generator yields a random but plausible stream of wallet operations.
type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
	seq      int
}

func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		scenario: SubscriptionPlatformScenario(),
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// Scenario returns the generator's population description.
func (g *Generator) Scenario() Scenario {
	return g.scenario
}

// OverrideScenario replaces the population, for focused runs.
func (g *Generator) OverrideScenario(s Scenario) {
	g.scenario = s
}

var (
	creditTypes = []ledger.TxType{
		ledger.TxDeposit, ledger.TxDeposit, ledger.TxDeposit,
		ledger.TxBonusCredit, ledger.TxRefund, ledger.TxReferralCommission,
		ledger.TxLuckyDrawPrize, ledger.TxProfitShare,
	}
	debitTypes = []ledger.TxType{
		ledger.TxWithdrawal, ledger.TxWithdrawal,
		ledger.TxInvestment, ledger.TxInvestment,
		ledger.TxSubscriptionPayment, ledger.TxChargeback,
	}
)

// Next produces the next operation. Deposits are weighted ahead of
// withdrawals so balances trend upward and rejections stay rare.
func (g *Generator) Next() Op {
	g.seq++
	users := g.scenario.Users
	if len(users) == 0 {
		panic("scenario requires at least one user")
	}
	op := Op{
		UserID:    users[g.rnd.Intn(len(users))],
		Amount:    ledger.Money(g.rnd.Int63n(int64(g.scenario.MaxAmount)) + 1),
		Reference: g.reference(),
	}
	switch roll := g.rnd.Intn(10); {
	case roll < 4:
		op.Kind = OpDeposit
		op.Type = creditTypes[g.rnd.Intn(len(creditTypes))]
	case roll < 7:
		op.Kind = OpWithdraw
		op.Type = debitTypes[g.rnd.Intn(len(debitTypes))]
		if op.Type == ledger.TxInvestment && op.Amount > 10 {
			op.Fee = op.Amount / 10
		}
	case roll < 9:
		op.Kind = OpLock
	default:
		op.Kind = OpRelease
	}
	return op
}

func (g *Generator) reference() string {
	return "sim-" + strconv.Itoa(g.seq)
}
