package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/platform/db"
)

// TransactionLog is the append-only transactions table.
type TransactionLog struct {
	db db.DBTX
}

// NewTransactionLog constructs the log over a pool or transaction.
func NewTransactionLog(conn db.DBTX) *TransactionLog {
	return &TransactionLog{db: conn}
}

// WithTx returns a log bound to tx.
func (l *TransactionLog) WithTx(tx pgx.Tx) *TransactionLog {
	return &TransactionLog{db: tx}
}

// Append inserts tx and returns it with its id and timestamp.
func (l *TransactionLog) Append(ctx context.Context, tx Transaction) (Transaction, error) {
	err := l.db.QueryRow(ctx, `INSERT INTO transactions (amount, type, sender_id, recipient_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`, tx.Amount, string(tx.Type), tx.SenderID, tx.RecipientID).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: append transaction: %w", err)
	}
	return tx, nil
}

// ListByAccount returns every transaction where the account is sender or
// recipient, oldest first.
func (l *TransactionLog) ListByAccount(ctx context.Context, accountID int64) ([]Transaction, error) {
	rows, err := l.db.Query(ctx, `SELECT id, amount, type, sender_id, recipient_id, created_at
FROM transactions
WHERE sender_id = $1 OR recipient_id = $1
ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var typ string
		if err := rows.Scan(&tx.ID, &tx.Amount, &typ, &tx.SenderID, &tx.RecipientID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		tx.Type = Type(typ)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list transactions: %w", err)
	}
	return out, nil
}

// BalanceFold pairs the stored balance of an account with the balance
// derived from its transactions.
type BalanceFold struct {
	AccountID int64
	Balance   decimal.Decimal
	Folded    decimal.Decimal
}

// Drift is the stored balance minus the folded balance.
func (f BalanceFold) Drift() decimal.Decimal {
	return f.Balance.Sub(f.Folded)
}

const foldQuery = `SELECT a.id, a.balance, COALESCE(SUM(
    CASE
        WHEN t.type = 'DEPOSIT' THEN t.amount
        WHEN t.type = 'WITHDRAW' THEN -t.amount
        WHEN t.type = 'TRANSFER' AND t.sender_id = a.id THEN -t.amount
        WHEN t.type = 'TRANSFER' AND t.recipient_id = a.id THEN t.amount
        ELSE 0
    END), 0)
FROM accounts a
LEFT JOIN transactions t ON t.sender_id = a.id OR t.recipient_id = a.id
GROUP BY a.id, a.balance
ORDER BY a.id`

// Folds computes a BalanceFold for every account.
func (l *TransactionLog) Folds(ctx context.Context) ([]BalanceFold, error) {
	rows, err := l.db.Query(ctx, foldQuery)
	if err != nil {
		return nil, fmt.Errorf("ledger: fold balances: %w", err)
	}
	defer rows.Close()
	var out []BalanceFold
	for rows.Next() {
		var f BalanceFold
		if err := rows.Scan(&f.AccountID, &f.Balance, &f.Folded); err != nil {
			return nil, fmt.Errorf("ledger: scan fold: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: fold balances: %w", err)
	}
	return out, nil
}
