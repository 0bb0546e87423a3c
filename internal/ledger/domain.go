package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

// Type classifies a ledger transaction.
type Type string

const (
	TypeDeposit  Type = "DEPOSIT"
	TypeWithdraw Type = "WITHDRAW"
	TypeTransfer Type = "TRANSFER"
)

// Transaction is an immutable ledger fact. RecipientID is set only for transfers.
type Transaction struct {
	ID          int64
	Amount      decimal.Decimal
	Type        Type
	SenderID    int64
	RecipientID *int64
	CreatedAt   time.Time
}

// Receipt is returned by every successful mutation.
type Receipt struct {
	TransactionID int64           `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// History is the balance of an account plus every transaction it took part in.
type History struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []HistoryEntry  `json:"transactions"`
}

var (
	// ErrAccountNotFound indicates the acting account no longer exists.
	ErrAccountNotFound = accounts.ErrAccountNotFound
	// ErrRecipientNotFound indicates the transfer target does not exist.
	ErrRecipientNotFound = errors.New("ledger: recipient not found")
	// ErrInvalidRecipient indicates a transfer to the sender itself.
	ErrInvalidRecipient = errors.New("ledger: cannot transfer to the same account")
	// ErrInsufficientFunds indicates the debit would overdraw the account.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrNotEligible indicates the caller's person kind may not perform the operation.
	ErrNotEligible = errors.New("ledger: operation restricted to natural persons")
	// ErrInvalidAmount indicates a non-positive amount, one with more than two
	// decimals, or one above shared.MaxAmount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive with at most two decimals")
	// ErrBalanceLimit indicates a credit would push a balance past shared.MaxAmount.
	ErrBalanceLimit = accounts.ErrBalanceOverflow
	// ErrStorage wraps persistence failures. The operation has been rolled back.
	ErrStorage = errors.New("ledger: storage failure")
)

var domainErrors = []error{
	ErrAccountNotFound,
	ErrRecipientNotFound,
	ErrInvalidRecipient,
	ErrInsufficientFunds,
	ErrNotEligible,
	ErrInvalidAmount,
	ErrBalanceLimit,
	accounts.ErrUnknownKind,
	shared.ErrIdempotencyConflict,
}

// storageError classifies err: domain errors pass through, everything else
// becomes an ErrStorage.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) || amount.GreaterThan(shared.MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// creditAllowed reports whether balance can absorb amount without exceeding
// shared.MaxAmount.
func creditAllowed(balance, amount decimal.Decimal) error {
	if balance.Add(amount).GreaterThan(shared.MaxAmount) {
		return ErrBalanceLimit
	}
	return nil
}

// selfServiceAllowed reports whether kind may deposit into or withdraw from
// its own account.
func selfServiceAllowed(kind accounts.Kind) (bool, error) {
	switch kind {
	case accounts.KindNatural:
		return true, nil
	case accounts.KindLegal:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", accounts.ErrUnknownKind, kind)
	}
}

type idempotencyKeyContextKey struct{}

// ContextWithIdempotencyKey attaches a client-supplied idempotency key to ctx.
func ContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// IdempotencyKeyFromContext returns the key attached by ContextWithIdempotencyKey.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key
}
