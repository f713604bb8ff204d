package stream

import (
	"context"
	"sync"
	"time"

	"niveshpay.org/internal/ledger"
)

// WalletEvent describes a committed wallet mutation for live consumers
// (back-office dashboards, reconciliation tails).
type WalletEvent struct {
	UserID    string        `json:"user_id"`
	Operation string        `json:"operation"`
	Type      ledger.TxType `json:"tx_type"`
	Amount    ledger.Money  `json:"amount"`
	Reference string        `json:"reference,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Stream fan-outs wallet events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan WalletEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan WalletEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan WalletEvent {
	ch := make(chan WalletEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. Events are emitted only
// after the mutation committed; a consumer never sees a rolled-back
// operation.
func (s *Stream) Publish(evt WalletEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
