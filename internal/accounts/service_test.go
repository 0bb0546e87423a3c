package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]Account
	created int
	// raceOnCreate simulates a concurrent registration that wins the unique index.
	raceOnCreate bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, byID: make(map[int64]Account)}
}

func (m *memoryRepo) FindByID(_ context.Context, id int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.byID {
		if acc.Email == email {
			return acc, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memoryRepo) findKind(ctx context.Context, id int64, kind Kind) (Account, error) {
	acc, err := m.FindByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acc.Kind != kind {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (m *memoryRepo) FindNaturalByID(ctx context.Context, id int64) (Account, error) {
	return m.findKind(ctx, id, KindNatural)
}

func (m *memoryRepo) FindLegalByID(ctx context.Context, id int64) (Account, error) {
	return m.findKind(ctx, id, KindLegal)
}

func (m *memoryRepo) create(in NewAccount, kind Kind) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnCreate {
		return Account{}, ErrEmailAlreadyExists
	}
	acc := Account{
		ID:           m.nextID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		Kind:         kind,
		TaxID:        in.TaxID,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now(),
	}
	m.byID[acc.ID] = acc
	m.nextID++
	m.created++
	return acc, nil
}

func (m *memoryRepo) CreateNatural(_ context.Context, in NewAccount) (Account, error) {
	return m.create(in, KindNatural)
}

func (m *memoryRepo) CreateLegal(_ context.Context, in NewAccount) (Account, error) {
	return m.create(in, KindLegal)
}

func (m *memoryRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.LastLogin = &at
	m.byID[id] = acc
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, WithHashCost(bcrypt.MinCost))
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret1",
		Address:  "Rua A, 1",
		City:     "Recife",
		State:    "PE",
		TaxID:    "12345678901",
	}
}

func TestRegisterNaturalHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	acc, err := svc.RegisterNatural(context.Background(), aliceInput())
	require.NoError(t, err)
	assert.Equal(t, KindNatural, acc.Kind)
	assert.True(t, acc.Balance.IsZero())
	assert.NotEqual(t, "secret1", acc.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("secret1")))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RegisterNatural(ctx, aliceInput())
	require.NoError(t, err)

	legal := aliceInput()
	legal.TaxID = "12345678000199"
	_, err = svc.RegisterLegal(ctx, legal)
	require.ErrorIs(t, err, ErrEmailAlreadyExists)
	assert.Equal(t, 1, repo.created)
}

func TestRegisterEmailMatchIsCaseSensitive(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RegisterNatural(ctx, aliceInput())
	require.NoError(t, err)

	upper := aliceInput()
	upper.Email = "Alice@example.com"
	_, err = svc.RegisterNatural(ctx, upper)
	require.NoError(t, err)
}

func TestRegisterReportsInsertRaceAsDuplicate(t *testing.T) {
	repo := newMemoryRepo()
	repo.raceOnCreate = true
	svc := newTestService(repo)

	_, err := svc.RegisterNatural(context.Background(), aliceInput())
	require.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestProfileSelectsTaxIDByKind(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	natural, err := svc.RegisterNatural(ctx, aliceInput())
	require.NoError(t, err)
	legalIn := aliceInput()
	legalIn.Email = "acme@example.com"
	legalIn.TaxID = "12345678000199"
	legal, err := svc.RegisterLegal(ctx, legalIn)
	require.NoError(t, err)

	p, err := svc.Profile(ctx, natural.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345678901", p.CPF)
	assert.Empty(t, p.CNPJ)

	p, err = svc.Profile(ctx, legal.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345678000199", p.CNPJ)
	assert.Empty(t, p.CPF)
	assert.Equal(t, KindLegal, p.Type)

	_, err = svc.Profile(ctx, 999)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestToProfileRejectsUnknownKind(t *testing.T) {
	_, err := Account{ID: 1, Kind: Kind("ROBOT")}.ToProfile()
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestAccountContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithAccount(context.Background(), Account{ID: 5, Kind: KindLegal})
	acc, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(5), acc.ID)
}
