package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"niveshpay.org/internal/ids"
	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/wallet"
)

// Store keeps wallets, ledger lines and the materialized account
// balances in Postgres. Every wallet mutation and its ledger entry
// commit in one transaction; the balance cache is updated in the same
// transaction so reads never see a half-applied entry.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

var (
	_ ledger.Service = (*Store)(nil)
	_ wallet.Service = (*Store)(nil)
	_ wallet.Totaler = (*Store)(nil)
)

func Open(dsn string, lockTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}, nil
}

// NewWithDB wraps an existing connection, used by tests and the
// migration tool.
func NewWithDB(db *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// mapErr translates driver errors into the domain's sentinel errors.
// 55P03 is lock_not_available, raised when lock_timeout expires while
// waiting on a wallet row.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return fmt.Errorf("%w: %s", wallet.ErrLockTimeout, pgErr.Message)
	}
	return err
}

func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return tx, nil
}

// lockWallet selects the wallet row FOR UPDATE, creating it first when
// the user has none yet.
func (s *Store) lockWallet(ctx context.Context, tx *sql.Tx, userID string, provision bool) (wallet.Wallet, error) {
	if provision {
		if _, err := tx.ExecContext(ctx, `
			insert into wallets(user_id, available, locked, updated_at)
			values ($1, 0, 0, now()) on conflict (user_id) do nothing
		`, userID); err != nil {
			return wallet.Wallet{}, mapErr(err)
		}
	}
	var w wallet.Wallet
	err := tx.QueryRowContext(ctx, `
		select user_id, available, locked, updated_at
		from wallets where user_id=$1 for update
	`, userID).Scan(&w.UserID, &w.Available, &w.Locked, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Wallet{}, wallet.ErrNotFound
	}
	if err != nil {
		return wallet.Wallet{}, mapErr(err)
	}
	return w, nil
}

// replay looks up a previously committed mutation with the same type and
// reference and, when found, returns the current wallet snapshot instead
// of posting a duplicate.
func (s *Store) replay(ctx context.Context, tx *sql.Tx, txType ledger.TxType, reference string) (wallet.Wallet, bool, error) {
	if reference == "" {
		return wallet.Wallet{}, false, nil
	}
	var userID string
	err := tx.QueryRowContext(ctx, `
		select user_id from wallet_transactions where tx_type=$1 and reference=$2
	`, string(txType), reference).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Wallet{}, false, nil
	}
	if err != nil {
		return wallet.Wallet{}, false, mapErr(err)
	}
	var w wallet.Wallet
	err = tx.QueryRowContext(ctx, `
		select user_id, available, locked, updated_at from wallets where user_id=$1
	`, userID).Scan(&w.UserID, &w.Available, &w.Locked, &w.UpdatedAt)
	if err != nil {
		return wallet.Wallet{}, false, mapErr(err)
	}
	return w, true, nil
}

// postEntryTx writes the entry's lines and folds each signed amount into
// the materialized balance of its account, inside the caller's
// transaction.
func postEntryTx(ctx context.Context, tx *sql.Tx, entry ledger.Entry) ([]ledger.Line, error) {
	if err := ledger.ValidateEntry(entry); err != nil {
		return nil, err
	}
	lines := make([]ledger.Line, 0, len(entry.Postings))
	for _, p := range entry.Postings {
		ln := ledger.Line{
			ID:          ids.New(),
			AccountCode: p.AccountCode,
			Direction:   p.Direction,
			Amount:      p.Amount,
			Type:        entry.Type,
			Reference:   entry.Reference,
			Description: entry.Description,
		}
		err := tx.QueryRowContext(ctx, `
			insert into ledger_lines(id, account_code, direction, amount, tx_type, reference, description)
			values ($1,$2,$3,$4,$5,$6,$7)
			returning sequence, created_at
		`, ln.ID, ln.AccountCode, string(ln.Direction), int64(ln.Amount), string(ln.Type), ln.Reference, ln.Description).Scan(&ln.Sequence, &ln.CreatedAt)
		if err != nil {
			return nil, mapErr(err)
		}
		if _, err := tx.ExecContext(ctx, `
			update ledger_accounts set balance = balance + $2 where code=$1
		`, ln.AccountCode, int64(ln.Signed())); err != nil {
			return nil, mapErr(err)
		}
		lines = append(lines, ln)
	}
	return lines, nil
}

func (s *Store) saveWallet(ctx context.Context, tx *sql.Tx, w *wallet.Wallet) error {
	w.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		update wallets set available=$2, locked=$3, updated_at=$4 where user_id=$1
	`, w.UserID, int64(w.Available), int64(w.Locked), w.UpdatedAt)
	return mapErr(err)
}

func (s *Store) recordMutation(ctx context.Context, tx *sql.Tx, userID string, txType ledger.TxType, reference string, amount, fee ledger.Money) error {
	_, err := tx.ExecContext(ctx, `
		insert into wallet_transactions(id, user_id, tx_type, reference, amount, fee)
		values ($1,$2,$3,nullif($4,''),$5,$6)
	`, ids.New(), userID, string(txType), reference, int64(amount), int64(fee))
	return mapErr(err)
}

func (s *Store) Deposit(ctx context.Context, userID string, amount ledger.Money, txType ledger.TxType, description, reference string) (wallet.Wallet, error) {
	entry, err := wallet.BuildDepositEntry(txType, amount, description, reference)
	if err != nil {
		return wallet.Wallet{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if w, done, err := s.replay(ctx, tx, txType, reference); err != nil {
		return wallet.Wallet{}, err
	} else if done {
		return w, nil
	}

	w, err := s.lockWallet(ctx, tx, userID, true)
	if err != nil {
		return wallet.Wallet{}, err
	}
	w.Available, err = w.Available.Add(amount)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if _, err := postEntryTx(ctx, tx, entry); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.saveWallet(ctx, tx, &w); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.recordMutation(ctx, tx, userID, txType, reference, amount, 0); err != nil {
		return wallet.Wallet{}, err
	}
	if err := tx.Commit(); err != nil {
		return wallet.Wallet{}, mapErr(err)
	}
	return w, nil
}

func (s *Store) Withdraw(ctx context.Context, userID string, amount ledger.Money, txType ledger.TxType, description, reference string, opts wallet.WithdrawOptions) (wallet.Wallet, error) {
	entry, err := wallet.BuildWithdrawEntry(txType, amount, description, reference, opts)
	if err != nil {
		return wallet.Wallet{}, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if w, done, err := s.replay(ctx, tx, txType, reference); err != nil {
		return wallet.Wallet{}, err
	} else if done {
		return w, nil
	}

	w, err := s.lockWallet(ctx, tx, userID, false)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if opts.FromLocked {
		if w.Locked < amount {
			return wallet.Wallet{}, wallet.ErrInsufficientLocked
		}
		w.Locked -= amount
	} else {
		if w.Available < amount {
			return wallet.Wallet{}, wallet.ErrInsufficientBalance
		}
		w.Available -= amount
	}
	if _, err := postEntryTx(ctx, tx, entry); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.saveWallet(ctx, tx, &w); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.recordMutation(ctx, tx, userID, txType, reference, amount, opts.Fee); err != nil {
		return wallet.Wallet{}, err
	}
	if err := tx.Commit(); err != nil {
		return wallet.Wallet{}, mapErr(err)
	}
	return w, nil
}

func (s *Store) LockFunds(ctx context.Context, userID string, amount ledger.Money) (wallet.Wallet, error) {
	if !amount.IsPositive() {
		return wallet.Wallet{}, ledger.ErrInvalidAmount
	}
	return s.reclassify(ctx, userID, func(w *wallet.Wallet) error {
		if w.Available < amount {
			return wallet.ErrInsufficientBalance
		}
		w.Available -= amount
		w.Locked += amount
		return nil
	})
}

func (s *Store) ReleaseLockedFunds(ctx context.Context, userID string, amount ledger.Money) (wallet.Wallet, error) {
	if !amount.IsPositive() {
		return wallet.Wallet{}, ledger.ErrInvalidAmount
	}
	return s.reclassify(ctx, userID, func(w *wallet.Wallet) error {
		if w.Locked < amount {
			return wallet.ErrInsufficientLocked
		}
		w.Locked -= amount
		w.Available += amount
		return nil
	})
}

// reclassify moves money between the available and locked columns under
// the row lock. No ledger lines: the liability total does not change.
func (s *Store) reclassify(ctx context.Context, userID string, apply func(*wallet.Wallet) error) (wallet.Wallet, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}
	defer func() { _ = tx.Rollback() }()

	w, err := s.lockWallet(ctx, tx, userID, false)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if err := apply(&w); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.saveWallet(ctx, tx, &w); err != nil {
		return wallet.Wallet{}, err
	}
	if err := tx.Commit(); err != nil {
		return wallet.Wallet{}, mapErr(err)
	}
	return w, nil
}

func (s *Store) GetWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	var w wallet.Wallet
	err := s.db.QueryRowContext(ctx, `
		select user_id, available, locked, updated_at from wallets where user_id=$1
	`, userID).Scan(&w.UserID, &w.Available, &w.Locked, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Wallet{}, wallet.ErrNotFound
	}
	if err != nil {
		return wallet.Wallet{}, mapErr(err)
	}
	return w, nil
}

// WalletTotal sums available+locked across all wallets for invariant
// verification, independently of the ledger side.
func (s *Store) WalletTotal(ctx context.Context) (ledger.Money, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		select coalesce(sum(available + locked), 0) from wallets
	`).Scan(&total)
	if err != nil {
		return 0, mapErr(err)
	}
	return ledger.Money(total), nil
}

// PostEntry writes a balanced entry outside any wallet mutation, for
// operational corrections posted by the back office.
func (s *Store) PostEntry(ctx context.Context, entry ledger.Entry) ([]ledger.Line, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	lines, err := postEntryTx(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapErr(err)
	}
	return lines, nil
}

func (s *Store) BalanceOf(ctx context.Context, code string) (ledger.Money, error) {
	acct, err := ledger.AccountByCode(code)
	if err != nil {
		return 0, err
	}
	var signed int64
	err = s.db.QueryRowContext(ctx, `select balance from ledger_accounts where code=$1`, code).Scan(&signed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, code)
	}
	if err != nil {
		return 0, mapErr(err)
	}
	if acct.Nature.CreditPositive() {
		return ledger.Money(signed), nil
	}
	return ledger.Money(-signed), nil
}

func (s *Store) ListLines(ctx context.Context, limit int, afterSeq uint64) ([]ledger.Line, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, account_code, direction, amount, tx_type, coalesce(reference,''), coalesce(description,''), sequence, created_at
		from ledger_lines
		where sequence > $1
		order by sequence asc
		limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var res []ledger.Line
	var last uint64
	for rows.Next() {
		var ln ledger.Line
		var dir, typ string
		if err := rows.Scan(&ln.ID, &ln.AccountCode, &dir, &ln.Amount, &typ, &ln.Reference, &ln.Description, &ln.Sequence, &ln.CreatedAt); err != nil {
			return nil, 0, err
		}
		ln.Direction = ledger.Direction(dir)
		ln.Type = ledger.TxType(typ)
		res = append(res, ln)
		last = ln.Sequence
	}
	return res, last, rows.Err()
}
