package ledger

import (
	"errors"
	"time"
)

// Direction marks which side of an account a line posts to.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// Nature classifies an account and fixes which direction increases its
// economic balance. Liability, equity and income accounts grow on credit;
// asset and expense accounts grow on debit.
type Nature string

const (
	Asset     Nature = "ASSET"
	Liability Nature = "LIABILITY"
	Equity    Nature = "EQUITY"
	Income    Nature = "INCOME"
	Expense   Nature = "EXPENSE"
)

// CreditPositive reports whether a credit grows the account.
func (n Nature) CreditPositive() bool {
	return n == Liability || n == Equity || n == Income
}

// Account is one bucket in the fixed chart of accounts. Its balance is
// derived from posted lines, never stored as a mutable field.
type Account struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Nature Nature `json:"nature"`
}

// Line is one immutable debit or credit posting against one account.
// Lines are append-only: never updated, never deleted.
type Line struct {
	ID          string    `json:"id"`
	AccountCode string    `json:"account_code"`
	Direction   Direction `json:"direction"`
	Amount      Money     `json:"amount"` // non-negative; direction carries the sign
	Type        TxType    `json:"type"`
	Reference   string    `json:"reference,omitempty"`
	Description string    `json:"description,omitempty"`
	Sequence    uint64    `json:"sequence"` // monotonic sequence number
	CreatedAt   time.Time `json:"created_at"`
}

// Signed returns the amount with the posting sign applied, credits positive.
func (l Line) Signed() Money {
	if l.Direction == Credit {
		return l.Amount
	}
	return -l.Amount
}

// Posting is one leg of an entry before it is persisted.
type Posting struct {
	AccountCode string
	Direction   Direction
	Amount      Money
}

// Entry is a balanced group of postings describing one business event.
type Entry struct {
	Type        TxType
	Reference   string
	Description string
	Postings    []Posting
}

var (
	ErrInvalidAmount          = errors.New("invalid amount (must be > 0)")
	ErrAmountOverflow         = errors.New("amount overflow")
	ErrUnbalancedEntry        = errors.New("entry lines do not net to zero")
	ErrUnknownTransactionType = errors.New("no ledger routing for transaction type")
	ErrAccountNotFound        = errors.New("ledger account not found")
	ErrRouteMismatch          = errors.New("transaction type routes the wallet to the opposite side")
)
