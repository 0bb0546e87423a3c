package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RegisterInput carries the registration payload for either kind.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Address  string
	City     string
	State    string
	TaxID    string
}

// Service implements registration and profile lookups.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	hashCost int
}

// Option customises a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService constructs the account service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, logger: logger, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterNatural creates a natural person account identified by CPF.
func (s *Service) RegisterNatural(ctx context.Context, in RegisterInput) (Account, error) {
	return s.register(ctx, KindNatural, in)
}

// RegisterLegal creates a legal person account identified by CNPJ.
func (s *Service) RegisterLegal(ctx context.Context, in RegisterInput) (Account, error) {
	return s.register(ctx, KindLegal, in)
}

func (s *Service) register(ctx context.Context, kind Kind, in RegisterInput) (Account, error) {
	_, err := s.repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return Account{}, ErrEmailAlreadyExists
	case !errors.Is(err, ErrAccountNotFound):
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: hash password: %w", err)
	}
	rec := NewAccount{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: string(hash),
		Address:      strings.TrimSpace(in.Address),
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Kind:         kind,
		TaxID:        in.TaxID,
	}
	var acc Account
	switch kind {
	case KindNatural:
		acc, err = s.repo.CreateNatural(ctx, rec)
	case KindLegal:
		acc, err = s.repo.CreateLegal(ctx, rec)
	default:
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account registered", slog.Int64("account_id", acc.ID), slog.String("kind", string(kind)))
	return acc, nil
}

// Profile returns the public view of the account.
func (s *Service) Profile(ctx context.Context, id int64) (Profile, error) {
	acc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return acc.ToProfile()
}
