package ledger

import (
	"context"
	"sync"
	"time"

	"niveshpay.org/internal/ids"
)

// Service defines double-entry ledger operations.
type Service interface {
	// PostEntry persists all lines of a balanced entry as one atomic
	// unit and returns them with ids and sequence numbers assigned.
	PostEntry(ctx context.Context, e Entry) ([]Line, error)
	// BalanceOf recomputes an account's economic balance from its lines.
	BalanceOf(ctx context.Context, accountCode string) (Money, error)
	// ListLines pages through the append-only line log by sequence.
	ListLines(ctx context.Context, limit int, afterSeq uint64) ([]Line, uint64, error)
}

// ValidateEntry enforces the double-entry contract: a routed type, at
// least two postings, positive amounts, known accounts, zero signed sum.
func ValidateEntry(e Entry) error {
	if _, err := RouteFor(e.Type); err != nil {
		return err
	}
	if len(e.Postings) < 2 {
		return ErrUnbalancedEntry
	}
	var sum Money
	for _, p := range e.Postings {
		if !p.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		if _, err := AccountByCode(p.AccountCode); err != nil {
			return err
		}
		signed := p.Amount
		if p.Direction == Debit {
			signed = -signed
		}
		var err error
		sum, err = sum.Add(signed)
		if err != nil {
			return err
		}
	}
	if !sum.IsZero() {
		return ErrUnbalancedEntry
	}
	return nil
}

// InMemory implements Service with in-process concurrency safety. Used by
// tests and when the API runs without Postgres.
type InMemory struct {
	mu    sync.RWMutex
	lines []Line
	seq   uint64
	// signed (credit-positive) running totals, maintained under the same
	// lock as the line log so they can never drift from it
	totals map[string]Money
}

// NewInMemory creates a ledger seeded with the chart of accounts.
func NewInMemory() *InMemory {
	totals := make(map[string]Money, len(chart))
	for _, a := range chart {
		totals[a.Code] = 0
	}
	return &InMemory{totals: totals}
}

func (s *InMemory) PostEntry(ctx context.Context, e Entry) ([]Line, error) {
	if err := ValidateEntry(e); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	created := make([]Line, 0, len(e.Postings))
	for _, p := range e.Postings {
		s.seq++
		line := Line{
			ID:          ids.New(),
			AccountCode: p.AccountCode,
			Direction:   p.Direction,
			Amount:      p.Amount,
			Type:        e.Type,
			Reference:   e.Reference,
			Description: e.Description,
			Sequence:    s.seq,
			CreatedAt:   now,
		}
		created = append(created, line)
	}
	// Stage the new running totals first: either every account total
	// moves or none does.
	updated := make(map[string]Money, len(created))
	for _, line := range created {
		base, ok := updated[line.AccountCode]
		if !ok {
			base = s.totals[line.AccountCode]
		}
		total, err := base.Add(line.Signed())
		if err != nil {
			return nil, err
		}
		updated[line.AccountCode] = total
	}
	for code, total := range updated {
		s.totals[code] = total
	}
	s.lines = append(s.lines, created...)
	return created, nil
}

func (s *InMemory) BalanceOf(ctx context.Context, accountCode string) (Money, error) {
	acc, err := AccountByCode(accountCode)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	signed := s.totals[accountCode]
	if acc.Nature.CreditPositive() {
		return signed, nil
	}
	return -signed, nil
}

func (s *InMemory) ListLines(ctx context.Context, limit int, afterSeq uint64) ([]Line, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Line
	var last uint64
	for _, line := range s.lines {
		if line.Sequence <= afterSeq {
			continue
		}
		res = append(res, line)
		last = line.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}

// LinesByReference returns all lines tagged with the given business
// reference, oldest first.
func (s *InMemory) LinesByReference(reference string) []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Line
	for _, line := range s.lines {
		if line.Reference == reference {
			res = append(res, line)
		}
	}
	return res
}
