package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/wallet"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, 200*time.Millisecond), mock
}

func expectTxStart(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestStoreDeposit(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	expectTxStart(mock)
	mock.ExpectQuery("select user_id from wallet_transactions").
		WithArgs("DEPOSIT", "dep-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("insert into wallets").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("from wallets where user_id=.+ for update").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "locked", "updated_at"}).
			AddRow("u1", int64(0), int64(0), now))
	// One insert+balance update per posting: debit BANK, credit liability.
	for seq := 1; seq <= 2; seq++ {
		mock.ExpectQuery("insert into ledger_lines").
			WillReturnRows(sqlmock.NewRows([]string{"sequence", "created_at"}).AddRow(uint64(seq), now))
		mock.ExpectExec("update ledger_accounts set balance").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("update wallets set available").
		WithArgs("u1", int64(100_000), int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into wallet_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w, err := store.Deposit(context.Background(), "u1", 100_000, ledger.TxDeposit, "upi", "dep-1")
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if w.Available != 100_000 || w.Locked != 0 {
		t.Fatalf("wallet = %+v", w)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreDepositReplay(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	expectTxStart(mock)
	mock.ExpectQuery("select user_id from wallet_transactions").
		WithArgs("DEPOSIT", "dep-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
	mock.ExpectQuery("from wallets where user_id=").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "locked", "updated_at"}).
			AddRow("u1", int64(100_000), int64(0), now))
	mock.ExpectRollback()

	w, err := store.Deposit(context.Background(), "u1", 100_000, ledger.TxDeposit, "upi", "dep-1")
	if err != nil {
		t.Fatalf("Deposit replay: %v", err)
	}
	if w.Available != 100_000 {
		t.Fatalf("replayed wallet = %+v", w)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreWithdrawInsufficientRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	expectTxStart(mock)
	mock.ExpectQuery("select user_id from wallet_transactions").
		WithArgs("WITHDRAWAL", "wd-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from wallets where user_id=.+ for update").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "available", "locked", "updated_at"}).
			AddRow("u1", int64(500), int64(0), now))
	mock.ExpectRollback()

	_, err := store.Withdraw(context.Background(), "u1", 1_000, ledger.TxWithdrawal, "", "wd-1", wallet.WithdrawOptions{})
	if !errors.Is(err, wallet.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreLockTimeoutMapped(t *testing.T) {
	store, mock := newMockStore(t)

	expectTxStart(mock)
	mock.ExpectQuery("select user_id from wallet_transactions").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from wallets where user_id=.+ for update").
		WithArgs("u1").
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	_, err := store.Withdraw(context.Background(), "u1", 1_000, ledger.TxWithdrawal, "", "wd-1", wallet.WithdrawOptions{})
	if !errors.Is(err, wallet.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestStoreBalanceOfFlipsByNature(t *testing.T) {
	store, mock := newMockStore(t)

	// BANK is an asset: stored signed balance is credit-positive, so a
	// funded bank account carries a negative signed value.
	mock.ExpectQuery("select balance from ledger_accounts").
		WithArgs(ledger.AccountBank).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(-5_000)))
	bank, err := store.BalanceOf(context.Background(), ledger.AccountBank)
	if err != nil {
		t.Fatalf("BalanceOf bank: %v", err)
	}
	if bank != 5_000 {
		t.Fatalf("bank = %d, want 5000", bank)
	}

	mock.ExpectQuery("select balance from ledger_accounts").
		WithArgs(ledger.AccountUserWalletLiability).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(5_000)))
	liability, err := store.BalanceOf(context.Background(), ledger.AccountUserWalletLiability)
	if err != nil {
		t.Fatalf("BalanceOf liability: %v", err)
	}
	if liability != 5_000 {
		t.Fatalf("liability = %d, want 5000", liability)
	}

	if _, err := store.BalanceOf(context.Background(), "NO_SUCH_ACCOUNT"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestStoreWalletTotal(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select coalesce\\(sum\\(available \\+ locked\\), 0\\) from wallets").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(123_456)))
	total, err := store.WalletTotal(context.Background())
	if err != nil {
		t.Fatalf("WalletTotal: %v", err)
	}
	if total != 123_456 {
		t.Fatalf("total = %d, want 123456", total)
	}
}
