package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
)

var (
	errInjected  = errors.New("injected storage failure")
	errNotLocked = errors.New("row updated without holding its lock")
)

// memoryStore emulates the storage transaction. Each account row has its own
// lock, held from LockAccounts until the transaction ends, and staged writes
// are only committed on success. A blocked lock gives up when ctx is done, so
// a lock-order inversion surfaces as context.DeadlineExceeded.
type memoryStore struct {
	mu       sync.Mutex
	rows     map[int64]chan struct{}
	accounts map[int64]accounts.Account
	txs      []Transaction
	keys     map[string]struct{}
	pending  map[string]struct{}
	audits   []shared.AuditLog
	nextTx   int64

	failCredit bool
	failAppend bool
	failAudit  bool

	snapshots int
}

func newMemoryStore(accs ...accounts.Account) *memoryStore {
	m := &memoryStore{
		rows:     make(map[int64]chan struct{}),
		accounts: make(map[int64]accounts.Account),
		keys:     make(map[string]struct{}),
		pending:  make(map[string]struct{}),
		nextTx:   1,
	}
	for _, acc := range accs {
		m.accounts[acc.ID] = acc
	}
	return m
}

func natural(id int64, balance string) accounts.Account {
	return accounts.Account{ID: id, Name: "natural", Kind: accounts.KindNatural, TaxID: "12345678901", Balance: decimal.RequireFromString(balance)}
}

func legal(id int64, balance string) accounts.Account {
	return accounts.Account{ID: id, Name: "legal", Kind: accounts.KindLegal, TaxID: "12345678000199", Balance: decimal.RequireFromString(balance)}
}

func (m *memoryStore) balance(id int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

func (m *memoryStore) transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transaction(nil), m.txs...)
}

func (m *memoryStore) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audits)
}

func (m *memoryStore) row(id int64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.rows[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.rows[id] = ch
	}
	return ch
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	work := &memoryTx{
		store:  m,
		held:   make(map[int64]chan struct{}),
		staged: make(map[int64]accounts.Account),
	}
	defer work.finish()
	if err := fn(ctx, work); err != nil {
		return err
	}
	work.commit()
	return nil
}

func (m *memoryStore) FindAccount(_ context.Context, id int64) (accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findAccount(id)
}

// WithSnapshot runs fn against the committed state with commits held off.
func (m *memoryStore) WithSnapshot(ctx context.Context, fn func(context.Context, Reader) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
	return fn(ctx, memorySnapshot{m})
}

func (m *memoryStore) findAccount(id int64) (accounts.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return acc, nil
}

func (m *memoryStore) listByAccount(accountID int64) []Transaction {
	var out []Transaction
	for _, tx := range m.txs {
		if tx.SenderID == accountID || (tx.RecipientID != nil && *tx.RecipientID == accountID) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// memorySnapshot is only used while memoryStore.mu is held.
type memorySnapshot struct {
	store *memoryStore
}

func (s memorySnapshot) FindAccount(_ context.Context, id int64) (accounts.Account, error) {
	return s.store.findAccount(id)
}

func (s memorySnapshot) ListByAccount(_ context.Context, accountID int64) ([]Transaction, error) {
	return s.store.listByAccount(accountID), nil
}

type memoryTx struct {
	store  *memoryStore
	held   map[int64]chan struct{}
	staged map[int64]accounts.Account
	txs    []Transaction
	audits []shared.AuditLog
	keys   []string
}

// LockAccounts takes the row locks in ascending id order, like LockByIDs.
func (t *memoryTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]accounts.Account, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range sorted {
		if _, ok := t.held[id]; !ok {
			ch := t.store.row(id)
			select {
			case ch <- struct{}{}:
				t.held[id] = ch
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if acc, ok := t.staged[id]; ok {
			out[id] = acc
			continue
		}
		t.store.mu.Lock()
		acc, ok := t.store.accounts[id]
		t.store.mu.Unlock()
		if ok {
			t.staged[id] = acc
			out[id] = acc
		}
	}
	return out, nil
}

func (t *memoryTx) ApplyBalanceDelta(_ context.Context, id int64, delta decimal.Decimal) (accounts.Account, error) {
	if t.store.failCredit && delta.IsPositive() {
		return accounts.Account{}, errInjected
	}
	acc, ok := t.staged[id]
	if !ok {
		if _, held := t.held[id]; held {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}
		if _, err := t.store.FindAccount(context.Background(), id); err != nil {
			return accounts.Account{}, err
		}
		return accounts.Account{}, errNotLocked
	}
	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return accounts.Account{}, accounts.ErrNegativeBalance
	}
	if next.GreaterThan(shared.MaxAmount) {
		return accounts.Account{}, accounts.ErrBalanceOverflow
	}
	acc.Balance = next
	t.staged[id] = acc
	return acc, nil
}

func (t *memoryTx) AppendTransaction(_ context.Context, tx Transaction) (Transaction, error) {
	if t.store.failAppend {
		return Transaction{}, errInjected
	}
	t.store.mu.Lock()
	tx.ID = t.store.nextTx
	t.store.nextTx++
	t.store.mu.Unlock()
	tx.CreatedAt = time.Date(2026, 1, 1, 0, 0, int(tx.ID), 0, time.UTC)
	t.txs = append(t.txs, tx)
	return tx, nil
}

func (t *memoryTx) ReserveIdempotencyKey(_ context.Context, key, module string) error {
	k := module + "/" + key
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.keys[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	if _, ok := t.store.pending[k]; ok {
		return shared.ErrIdempotencyConflict
	}
	t.store.pending[k] = struct{}{}
	t.keys = append(t.keys, k)
	return nil
}

func (t *memoryTx) RecordAudit(_ context.Context, entry shared.AuditLog) error {
	if t.store.failAudit {
		return errInjected
	}
	t.audits = append(t.audits, entry)
	return nil
}

func (t *memoryTx) commit() {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, acc := range t.staged {
		m.accounts[id] = acc
	}
	m.txs = append(m.txs, t.txs...)
	m.audits = append(m.audits, t.audits...)
	for _, k := range t.keys {
		m.keys[k] = struct{}{}
	}
}

// finish releases pending keys and row locks whether or not the tx committed.
func (t *memoryTx) finish() {
	t.store.mu.Lock()
	for _, k := range t.keys {
		delete(t.store.pending, k)
	}
	t.store.mu.Unlock()
	for _, ch := range t.held {
		<-ch
	}
}

type recordedOp struct {
	operation string
	outcome   string
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (f *fakeRecorder) ObserveLedgerOperation(operation, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, recordedOp{operation: operation, outcome: outcome})
}
