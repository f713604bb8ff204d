package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/sim"
	"niveshpay.org/internal/wallet"
)

// Runs a randomized operation mix against the in-memory engine and
// verifies the books balance after every step. Useful as a fast local
// soak before schema or routing changes.
func main() {
	log.SetFlags(0)
	var (
		seed  = flag.Int64("seed", 0, "RNG seed (0 = time-based)")
		steps = flag.Int("steps", 10_000, "operations to run")
		every = flag.Int("verify-every", 1, "verify the invariant every N steps")
	)
	flag.Parse()

	if err := ledger.ValidateRouting(); err != nil {
		log.Fatalf("routing table: %v", err)
	}

	led := ledger.NewInMemory()
	wallets := wallet.NewInMemory(led)
	checker := wallet.Checker{Wallets: wallets, Ledger: led}
	ctx := context.Background()

	g := sim.NewGenerator(*seed)
	for _, u := range g.Scenario().Users {
		if _, err := wallets.Deposit(ctx, u, g.Scenario().SeedDeposit, ledger.TxDeposit, "simulation seed", "seed-"+u); err != nil {
			log.Fatalf("seed %s: %v", u, err)
		}
	}

	var stats sim.Counter
	for i := 0; i < *steps; i++ {
		op := g.Next()
		var err error
		switch op.Kind {
		case sim.OpDeposit:
			_, err = wallets.Deposit(ctx, op.UserID, op.Amount, op.Type, "", op.Reference)
		case sim.OpWithdraw:
			_, err = wallets.Withdraw(ctx, op.UserID, op.Amount, op.Type, "", op.Reference, wallet.WithdrawOptions{Fee: op.Fee})
		case sim.OpLock:
			_, err = wallets.LockFunds(ctx, op.UserID, op.Amount)
		case sim.OpRelease:
			_, err = wallets.ReleaseLockedFunds(ctx, op.UserID, op.Amount)
		}
		switch {
		case err == nil:
		case errors.Is(err, wallet.ErrInsufficientBalance), errors.Is(err, wallet.ErrInsufficientLocked):
		default:
			log.Fatalf("step %d %+v: %v", i, op, err)
		}
		stats.Add(op, err == nil)

		if *every > 0 && i%*every == 0 {
			report, err := checker.Verify(ctx)
			if err != nil {
				log.Fatalf("verify at step %d: %v", i, err)
			}
			if !report.Holds {
				log.Fatalf("invariant broke at step %d: wallets=%d ledger=%d", i, report.WalletTotal, report.LedgerTotal)
			}
		}
	}

	report, err := checker.Verify(ctx)
	if err != nil {
		log.Fatalf("final verify: %v", err)
	}
	if !report.Holds {
		log.Fatalf("final invariant: wallets=%d ledger=%d", report.WalletTotal, report.LedgerTotal)
	}

	fmt.Printf("✅ %d ops (%d accepted, %d rejected), volume ₹%.2f, books balanced at %d paise\n",
		stats.Ops, stats.Accepted, stats.Rejected, stats.VolumeRupees(), report.LedgerTotal)
}
