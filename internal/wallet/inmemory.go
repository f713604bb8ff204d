package wallet

import (
	"context"
	"sync"
	"time"

	"niveshpay.org/internal/ledger"
)

// InMemory implements Service backed by a ledger.Service, with a lock per
// wallet so operations on the same user serialize while different users
// proceed independently.
type InMemory struct {
	ledger ledger.Service

	mu      sync.Mutex // guards the wallets map only
	wallets map[string]*walletState
}

type walletState struct {
	mu sync.Mutex
	w  Wallet
}

var (
	_ Service = (*InMemory)(nil)
	_ Totaler = (*InMemory)(nil)
)

// NewInMemory creates a wallet service posting to the given ledger.
func NewInMemory(l ledger.Service) *InMemory {
	return &InMemory{ledger: l, wallets: make(map[string]*walletState)}
}

// state returns the wallet state for a user, creating the wallet on first
// use (one wallet per user, provisioned on demand).
func (s *InMemory) state(userID string) *walletState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.wallets[userID]
	if !ok {
		st = &walletState{w: Wallet{UserID: userID}}
		s.wallets[userID] = st
	}
	return st
}

func (s *InMemory) Deposit(ctx context.Context, userID string, amount ledger.Money, txType ledger.TxType, description, reference string) (Wallet, error) {
	entry, err := BuildDepositEntry(txType, amount, description, reference)
	if err != nil {
		return Wallet{}, err
	}

	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Stage the wallet change before posting so a failed post leaves the
	// wallet untouched and a successful post cannot fail to apply.
	newAvailable, err := st.w.Available.Add(amount)
	if err != nil {
		return Wallet{}, err
	}
	if _, err := s.ledger.PostEntry(ctx, entry); err != nil {
		return Wallet{}, err
	}
	st.w.Available = newAvailable
	st.w.UpdatedAt = time.Now().UTC()
	return st.w, nil
}

func (s *InMemory) Withdraw(ctx context.Context, userID string, amount ledger.Money, txType ledger.TxType, description, reference string, opts WithdrawOptions) (Wallet, error) {
	entry, err := BuildWithdrawEntry(txType, amount, description, reference, opts)
	if err != nil {
		return Wallet{}, err
	}

	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if opts.FromLocked {
		if st.w.Locked < amount {
			return Wallet{}, ErrInsufficientLocked
		}
	} else if st.w.Available < amount {
		return Wallet{}, ErrInsufficientBalance
	}
	if _, err := s.ledger.PostEntry(ctx, entry); err != nil {
		return Wallet{}, err
	}
	if opts.FromLocked {
		st.w.Locked -= amount
	} else {
		st.w.Available -= amount
	}
	st.w.UpdatedAt = time.Now().UTC()
	return st.w, nil
}

func (s *InMemory) LockFunds(ctx context.Context, userID string, amount ledger.Money) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ledger.ErrInvalidAmount
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.w.Available < amount {
		return Wallet{}, ErrInsufficientBalance
	}
	// Reclassification only: the liability total is unchanged, so no
	// ledger lines are posted.
	st.w.Available -= amount
	st.w.Locked += amount
	st.w.UpdatedAt = time.Now().UTC()
	return st.w, nil
}

func (s *InMemory) ReleaseLockedFunds(ctx context.Context, userID string, amount ledger.Money) (Wallet, error) {
	if !amount.IsPositive() {
		return Wallet{}, ledger.ErrInvalidAmount
	}
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.w.Locked < amount {
		return Wallet{}, ErrInsufficientLocked
	}
	st.w.Locked -= amount
	st.w.Available += amount
	st.w.UpdatedAt = time.Now().UTC()
	return st.w, nil
}

func (s *InMemory) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	st, ok := s.wallets[userID]
	s.mu.Unlock()
	if !ok {
		return Wallet{}, ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.w, nil
}

// WalletTotal sums available+locked across every wallet, independently of
// the ledger, for invariant verification.
func (s *InMemory) WalletTotal(ctx context.Context) (ledger.Money, error) {
	s.mu.Lock()
	states := make([]*walletState, 0, len(s.wallets))
	for _, st := range s.wallets {
		states = append(states, st)
	}
	s.mu.Unlock()

	var total ledger.Money
	for _, st := range states {
		st.mu.Lock()
		sum, err := st.w.Total()
		st.mu.Unlock()
		if err != nil {
			return 0, err
		}
		total, err = total.Add(sum)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
