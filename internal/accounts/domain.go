package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes natural persons from legal persons.
type Kind string

const (
	KindNatural Kind = "NATURAL"
	KindLegal   Kind = "LEGAL"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNatural, KindLegal:
		return true
	}
	return false
}

// Account is a registered person holding a single balance.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Address      string
	City         string
	State        string
	Kind         Kind
	// TaxID is the CPF (11 digits) of a natural person or the CNPJ (14 digits) of a legal person.
	TaxID     string
	Balance   decimal.Decimal
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount carries the fields needed to register an account.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	Address      string
	City         string
	State        string
	Kind         Kind
	TaxID        string
}

// Profile is the public view of an account.
type Profile struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Address string          `json:"address"`
	City    string          `json:"city"`
	State   string          `json:"state"`
	Balance decimal.Decimal `json:"balance"`
	Type    Kind            `json:"type"`
	CPF     string          `json:"cpf,omitempty"`
	CNPJ    string          `json:"cnpj,omitempty"`
}

var (
	// ErrAccountNotFound indicates the referenced account id or email does not exist.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrEmailAlreadyExists indicates a registration email collision.
	ErrEmailAlreadyExists = errors.New("accounts: email already registered")
	// ErrNegativeBalance indicates a balance delta was refused because it would overdraw the account.
	ErrNegativeBalance = errors.New("accounts: balance would become negative")
	// ErrUnknownKind indicates a kind outside NATURAL/LEGAL.
	ErrUnknownKind = errors.New("accounts: unknown person kind")
	// ErrBalanceOverflow indicates the balance would exceed shared.MaxAmount.
	ErrBalanceOverflow = errors.New("accounts: balance would exceed the storable maximum")
)

// ToProfile projects the account onto its public fields.
func (a Account) ToProfile() (Profile, error) {
	p := Profile{
		ID:      a.ID,
		Name:    a.Name,
		Email:   a.Email,
		Address: a.Address,
		City:    a.City,
		State:   a.State,
		Balance: a.Balance,
		Type:    a.Kind,
	}
	switch a.Kind {
	case KindNatural:
		p.CPF = a.TaxID
	case KindLegal:
		p.CNPJ = a.TaxID
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	return p, nil
}

type accountContextKey struct{}

// ContextWithAccount stores the authenticated account in ctx.
func ContextWithAccount(ctx context.Context, acc Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, acc)
}

// FromContext returns the authenticated account stored by the auth middleware.
func FromContext(ctx context.Context) (Account, bool) {
	acc, ok := ctx.Value(accountContextKey{}).(Account)
	return acc, ok
}
