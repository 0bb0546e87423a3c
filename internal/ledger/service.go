package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Recorder receives one observation per mutating operation.
type Recorder interface {
	ObserveLedgerOperation(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveLedgerOperation(string, string) {}

// Engine applies deposits, withdrawals and transfers. Every mutation runs in
// a single storage transaction with the involved account rows locked.
type Engine struct {
	repo    Repository
	logger  *slog.Logger
	metrics Recorder
	now     func() time.Time
}

// NewEngine constructs the ledger engine. metrics may be nil.
func NewEngine(repo Repository, logger *slog.Logger, metrics Recorder) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Engine{repo: repo, logger: logger, metrics: metrics, now: time.Now}
}

// Deposit credits a natural person's own account.
func (e *Engine) Deposit(ctx context.Context, caller accounts.Account, amount decimal.Decimal) (Receipt, error) {
	receipt, err := e.selfService(ctx, caller, TypeDeposit, amount)
	e.observe("deposit", err)
	return receipt, err
}

// Withdraw debits a natural person's own account.
func (e *Engine) Withdraw(ctx context.Context, caller accounts.Account, amount decimal.Decimal) (Receipt, error) {
	receipt, err := e.selfService(ctx, caller, TypeWithdraw, amount)
	e.observe("withdraw", err)
	return receipt, err
}

// Transfer moves amount from the caller to recipientID. Both person kinds may
// send and receive.
func (e *Engine) Transfer(ctx context.Context, caller accounts.Account, recipientID int64, amount decimal.Decimal) (Receipt, error) {
	receipt, err := e.transfer(ctx, caller, recipientID, amount)
	e.observe("transfer", err)
	return receipt, err
}

// GetBalance returns the current balance of the account.
func (e *Engine) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	acc, err := e.repo.FindAccount(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, storageError("get balance", err)
	}
	return acc.Balance, nil
}

// GetHistory returns the balance and every transaction the account took part
// in, annotated from its point of view. Both are read from one snapshot so the
// balance always equals the fold of the listed transactions.
func (e *Engine) GetHistory(ctx context.Context, accountID int64) (History, error) {
	var history History
	err := e.repo.WithSnapshot(ctx, func(ctx context.Context, r Reader) error {
		acc, err := r.FindAccount(ctx, accountID)
		if err != nil {
			return err
		}
		txs, err := r.ListByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		history = History{Balance: acc.Balance, Transactions: Annotate(txs, accountID)}
		return nil
	})
	if err != nil {
		return History{}, storageError("get history", err)
	}
	return history, nil
}

func (e *Engine) selfService(ctx context.Context, caller accounts.Account, typ Type, amount decimal.Decimal) (Receipt, error) {
	if err := validAmount(amount); err != nil {
		return Receipt{}, err
	}
	if err := requireSelfService(caller.Kind); err != nil {
		return Receipt{}, err
	}
	delta := amount
	if typ == TypeWithdraw {
		delta = amount.Neg()
	}

	var receipt Receipt
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := reserveKey(ctx, tx, typ); err != nil {
			return err
		}
		locked, err := tx.LockAccounts(ctx, caller.ID)
		if err != nil {
			return err
		}
		acc, ok := locked[caller.ID]
		if !ok {
			return ErrAccountNotFound
		}
		if err := requireSelfService(acc.Kind); err != nil {
			return err
		}
		if typ == TypeWithdraw && acc.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if typ == TypeDeposit {
			if err := creditAllowed(acc.Balance, amount); err != nil {
				return err
			}
		}
		updated, err := tx.ApplyBalanceDelta(ctx, acc.ID, delta)
		if err != nil {
			return debitError(err)
		}
		rec, err := tx.AppendTransaction(ctx, Transaction{Amount: amount, Type: typ, SenderID: acc.ID})
		if err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, e.auditEntry(acc.ID, rec, updated.Balance)); err != nil {
			return err
		}
		receipt = Receipt{TransactionID: rec.ID, Amount: amount, NewBalance: updated.Balance}
		return nil
	})
	if err != nil {
		return Receipt{}, storageError(string(typ), err)
	}
	e.logger.Info("ledger mutation applied",
		slog.String("type", string(typ)),
		slog.Int64("account_id", caller.ID),
		slog.Int64("transaction_id", receipt.TransactionID),
		slog.String("amount", amount.StringFixed(2)))
	return receipt, nil
}

func (e *Engine) transfer(ctx context.Context, caller accounts.Account, recipientID int64, amount decimal.Decimal) (Receipt, error) {
	if err := validAmount(amount); err != nil {
		return Receipt{}, err
	}
	if recipientID == caller.ID {
		return Receipt{}, ErrInvalidRecipient
	}

	var receipt Receipt
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := reserveKey(ctx, tx, TypeTransfer); err != nil {
			return err
		}
		locked, err := tx.LockAccounts(ctx, caller.ID, recipientID)
		if err != nil {
			return err
		}
		sender, ok := locked[caller.ID]
		if !ok {
			return ErrAccountNotFound
		}
		recipient, ok := locked[recipientID]
		if !ok {
			return ErrRecipientNotFound
		}
		if sender.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if err := creditAllowed(recipient.Balance, amount); err != nil {
			return err
		}
		debited, err := tx.ApplyBalanceDelta(ctx, sender.ID, amount.Neg())
		if err != nil {
			return debitError(err)
		}
		if _, err := tx.ApplyBalanceDelta(ctx, recipientID, amount); err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}
		rid := recipientID
		rec, err := tx.AppendTransaction(ctx, Transaction{Amount: amount, Type: TypeTransfer, SenderID: sender.ID, RecipientID: &rid})
		if err != nil {
			return err
		}
		if err := tx.RecordAudit(ctx, e.auditEntry(sender.ID, rec, debited.Balance)); err != nil {
			return err
		}
		receipt = Receipt{TransactionID: rec.ID, Amount: amount, NewBalance: debited.Balance}
		return nil
	})
	if err != nil {
		return Receipt{}, storageError("transfer", err)
	}
	e.logger.Info("ledger transfer applied",
		slog.Int64("sender_id", caller.ID),
		slog.Int64("recipient_id", recipientID),
		slog.Int64("transaction_id", receipt.TransactionID),
		slog.String("amount", amount.StringFixed(2)))
	return receipt, nil
}

func requireSelfService(kind accounts.Kind) error {
	allowed, err := selfServiceAllowed(kind)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrNotEligible
	}
	return nil
}

func debitError(err error) error {
	if errors.Is(err, accounts.ErrNegativeBalance) {
		return ErrInsufficientFunds
	}
	return err
}

func reserveKey(ctx context.Context, tx TxRepository, typ Type) error {
	key := IdempotencyKeyFromContext(ctx)
	if key == "" {
		return nil
	}
	return tx.ReserveIdempotencyKey(ctx, key, idempotencyModule(typ))
}

func idempotencyModule(typ Type) string {
	switch typ {
	case TypeDeposit:
		return "ledger.deposit"
	case TypeWithdraw:
		return "ledger.withdraw"
	case TypeTransfer:
		return "ledger.transfer"
	}
	return "ledger"
}

func (e *Engine) auditEntry(actorID int64, tx Transaction, balance decimal.Decimal) shared.AuditLog {
	meta := map[string]any{
		"type":    string(tx.Type),
		"amount":  tx.Amount.StringFixed(2),
		"balance": balance.StringFixed(2),
	}
	if tx.RecipientID != nil {
		meta["recipient_id"] = *tx.RecipientID
	}
	return shared.AuditLog{
		ActorID:  actorID,
		Action:   idempotencyModule(tx.Type),
		Entity:   "transaction",
		EntityID: strconv.FormatInt(tx.ID, 10),
		Meta:     meta,
		At:       e.now(),
	}
}

func (e *Engine) observe(operation string, err error) {
	e.metrics.ObserveLedgerOperation(operation, Outcome(err))
}

// Outcome is the metrics label for the result of an operation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrBalanceLimit):
		return "balance_limit"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return "duplicate"
	default:
		return "error"
	}
}
