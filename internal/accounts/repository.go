package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/platform/db"
)

// Repository is the account storage surface used by registration and login.
type Repository interface {
	FindByID(ctx context.Context, id int64) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindNaturalByID(ctx context.Context, id int64) (Account, error)
	FindLegalByID(ctx context.Context, id int64) (Account, error)
	CreateNatural(ctx context.Context, in NewAccount) (Account, error)
	CreateLegal(ctx context.Context, in NewAccount) (Account, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// PGRepository stores accounts in PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

var _ Repository = (*PGRepository)(nil)

// NewRepository constructs a repository over a pool or transaction.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *PGRepository) WithTx(tx pgx.Tx) *PGRepository {
	return &PGRepository{db: tx}
}

const accountColumns = `id, name, email, password_hash, address, city, state, kind,
    COALESCE(cpf, cnpj, ''), balance, last_login, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	var kind string
	err := row.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &acc.Address, &acc.City, &acc.State,
		&kind, &acc.TaxID, &acc.Balance, &acc.LastLogin, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	acc.Kind = Kind(kind)
	return acc, nil
}

func (r *PGRepository) findOne(ctx context.Context, query string, args ...any) (Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("accounts: query: %w", err)
	}
	return acc, nil
}

// FindByID loads an account of any kind.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// FindByEmail loads an account by its login email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

// FindNaturalByID loads the account only when it belongs to a natural person.
func (r *PGRepository) FindNaturalByID(ctx context.Context, id int64) (Account, error) {
	return r.findByIDAndKind(ctx, id, KindNatural)
}

// FindLegalByID loads the account only when it belongs to a legal person.
func (r *PGRepository) FindLegalByID(ctx context.Context, id int64) (Account, error) {
	return r.findByIDAndKind(ctx, id, KindLegal)
}

func (r *PGRepository) findByIDAndKind(ctx context.Context, id int64, kind Kind) (Account, error) {
	if !kind.Valid() {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 AND kind = $2`, id, string(kind))
}

// CreateNatural inserts a natural person with a zero balance.
func (r *PGRepository) CreateNatural(ctx context.Context, in NewAccount) (Account, error) {
	in.Kind = KindNatural
	return r.create(ctx, in)
}

// CreateLegal inserts a legal person with a zero balance.
func (r *PGRepository) CreateLegal(ctx context.Context, in NewAccount) (Account, error) {
	in.Kind = KindLegal
	return r.create(ctx, in)
}

func (r *PGRepository) create(ctx context.Context, in NewAccount) (Account, error) {
	var cpf, cnpj *string
	switch in.Kind {
	case KindNatural:
		cpf = &in.TaxID
	case KindLegal:
		cnpj = &in.TaxID
	default:
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownKind, in.Kind)
	}
	acc, err := scanAccount(r.db.QueryRow(ctx, `INSERT INTO accounts
    (name, email, password_hash, address, city, state, kind, cpf, cnpj)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+accountColumns,
		in.Name, in.Email, in.PasswordHash, in.Address, in.City, in.State, string(in.Kind), cpf, cnpj))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrEmailAlreadyExists
		}
		return Account{}, fmt.Errorf("accounts: insert: %w", err)
	}
	return acc, nil
}

// TouchLastLogin records a successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET last_login = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("accounts: touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// LockByIDs takes row locks on every id in ascending order so concurrent
// transfers between the same pair of accounts cannot deadlock. Missing ids
// are simply absent from the result.
func (r *PGRepository) LockByIDs(ctx context.Context, ids ...int64) (map[int64]Account, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return nil, fmt.Errorf("accounts: lock: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]Account, len(ids))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("accounts: lock scan: %w", err)
		}
		out[acc.ID] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts: lock rows: %w", err)
	}
	return out, nil
}

// ApplyBalanceDelta adds a signed delta to the balance and returns the updated
// account. The update is a single conditional statement; it is refused with
// ErrNegativeBalance when the result would be below zero.
func (r *PGRepository) ApplyBalanceDelta(ctx context.Context, id int64, delta decimal.Decimal) (Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `UPDATE accounts
SET balance = balance + $2, updated_at = NOW()
WHERE id = $1 AND balance + $2 >= 0
RETURNING `+accountColumns, id, delta))
	if err == nil {
		return acc, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return Account{}, fmt.Errorf("accounts: apply balance delta: %w", err)
		}
		if !exists {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, ErrNegativeBalance
	}
	return Account{}, balanceUpdateError(err)
}

// balanceUpdateError maps constraint and range violations of a balance update
// to domain errors.
func balanceUpdateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514":
			return ErrNegativeBalance
		case "22003":
			return ErrBalanceOverflow
		}
	}
	return fmt.Errorf("accounts: apply balance delta: %w", err)
}
