package ledger

import (
	"math"
	"testing"
)

func TestMoneyAddOverflow(t *testing.T) {
	if _, err := Money(math.MaxInt64).Add(1); err != ErrAmountOverflow {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	if _, err := Money(math.MinInt64).Add(-1); err != ErrAmountOverflow {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	sum, err := Money(40).Add(2)
	if err != nil || sum != 42 {
		t.Fatalf("unexpected result: %d, %v", sum, err)
	}
}

func TestMoneySubOverflow(t *testing.T) {
	if _, err := Money(math.MinInt64).Sub(1); err != ErrAmountOverflow {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	if _, err := Money(math.MaxInt64).Sub(-1); err != ErrAmountOverflow {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
	diff, err := Money(100).Sub(30)
	if err != nil || diff != 70 {
		t.Fatalf("unexpected result: %d, %v", diff, err)
	}
}

func TestMoneyPredicates(t *testing.T) {
	if !Money(1).IsPositive() || Money(0).IsPositive() || Money(-1).IsPositive() {
		t.Fatal("IsPositive misbehaves")
	}
	if !Money(-1).IsNegative() || Money(0).IsNegative() {
		t.Fatal("IsNegative misbehaves")
	}
	if !Money(0).IsZero() || Money(5).IsZero() {
		t.Fatal("IsZero misbehaves")
	}
}
