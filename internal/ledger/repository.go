package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/db"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Repository is the storage surface of the engine.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// WithSnapshot runs fn against one consistent read-only view.
	WithSnapshot(ctx context.Context, fn func(context.Context, Reader) error) error
	FindAccount(ctx context.Context, id int64) (accounts.Account, error)
}

// Reader is the read surface available inside a snapshot.
type Reader interface {
	FindAccount(ctx context.Context, id int64) (accounts.Account, error)
	ListByAccount(ctx context.Context, accountID int64) ([]Transaction, error)
}

// TxRepository exposes the writes performed inside one storage transaction.
type TxRepository interface {
	// LockAccounts locks the rows in ascending id order. Unknown ids are absent from the result.
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]accounts.Account, error)
	ApplyBalanceDelta(ctx context.Context, id int64, delta decimal.Decimal) (accounts.Account, error)
	AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	ReserveIdempotencyKey(ctx context.Context, key, module string) error
	RecordAudit(ctx context.Context, entry shared.AuditLog) error
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	db.DBTX
	db.Beginner
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool     Pool
	accounts *accounts.PGRepository
	log      *TransactionLog
	idem     *shared.IdempotencyStore
	audit    *shared.AuditLogger
}

var _ Repository = (*PGRepository)(nil)

// NewRepository constructs the repository.
func NewRepository(pool Pool) *PGRepository {
	return &PGRepository{
		pool:     pool,
		accounts: accounts.NewRepository(pool),
		log:      NewTransactionLog(pool),
		idem:     shared.NewIdempotencyStore(pool),
		audit:    shared.NewAuditLogger(pool),
	}
}

// WithTx runs fn inside a read-committed transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{
			accounts: r.accounts.WithTx(tx),
			log:      r.log.WithTx(tx),
			idem:     r.idem.WithTx(tx),
			audit:    r.audit.WithTx(tx),
		})
	})
}

// FindAccount loads an account without locking it.
func (r *PGRepository) FindAccount(ctx context.Context, id int64) (accounts.Account, error) {
	return r.accounts.FindByID(ctx, id)
}

// WithSnapshot runs fn inside a read-only repeatable-read transaction.
func (r *PGRepository) WithSnapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgReader{
			accounts: r.accounts.WithTx(tx),
			log:      r.log.WithTx(tx),
		})
	})
}

// Folds exposes the transaction log fold for the integrity scan.
func (r *PGRepository) Folds(ctx context.Context) ([]BalanceFold, error) {
	return r.log.Folds(ctx)
}

type pgReader struct {
	accounts *accounts.PGRepository
	log      *TransactionLog
}

func (r *pgReader) FindAccount(ctx context.Context, id int64) (accounts.Account, error) {
	return r.accounts.FindByID(ctx, id)
}

func (r *pgReader) ListByAccount(ctx context.Context, accountID int64) ([]Transaction, error) {
	return r.log.ListByAccount(ctx, accountID)
}

type pgTxRepository struct {
	accounts *accounts.PGRepository
	log      *TransactionLog
	idem     *shared.IdempotencyStore
	audit    *shared.AuditLogger
}

func (r *pgTxRepository) LockAccounts(ctx context.Context, ids ...int64) (map[int64]accounts.Account, error) {
	return r.accounts.LockByIDs(ctx, ids...)
}

func (r *pgTxRepository) ApplyBalanceDelta(ctx context.Context, id int64, delta decimal.Decimal) (accounts.Account, error) {
	return r.accounts.ApplyBalanceDelta(ctx, id, delta)
}

func (r *pgTxRepository) AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	return r.log.Append(ctx, tx)
}

func (r *pgTxRepository) ReserveIdempotencyKey(ctx context.Context, key, module string) error {
	return r.idem.CheckAndInsert(ctx, key, module)
}

func (r *pgTxRepository) RecordAudit(ctx context.Context, entry shared.AuditLog) error {
	return r.audit.Record(ctx, entry)
}
