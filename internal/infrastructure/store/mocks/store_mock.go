package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/example/ec-checkout/internal/infrastructure/store"
)

// MockStore wraps a MemoryStore and injects failures into chosen calls.
// Failures are keyed by operation, optionally narrowed to one product:
// "IncreaseStock" or "IncreaseStock:prod-2".
type MockStore struct {
	*store.MemoryStore

	mu    sync.Mutex
	errs  map[string]error
	Calls []string
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{
		MemoryStore: store.NewMemoryStore(),
		errs:        make(map[string]error),
		Calls:       make([]string, 0),
	}
}

// FailOn makes the keyed operation return err
func (m *MockStore) FailOn(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[key] = err
}

// CallCount returns how many times key was invoked
func (m *MockStore) CallCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == key {
			n++
		}
	}
	return n
}

func (m *MockStore) check(op, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op)
	if productID != "" {
		m.Calls = append(m.Calls, op+":"+productID)
		if err, ok := m.errs[op+":"+productID]; ok {
			return err
		}
	}
	return m.errs[op]
}

func (m *MockStore) wrap(r store.Repositories) store.Repositories {
	return &mockRepos{Repositories: r, m: m}
}

func (m *MockStore) Products() store.ProductRepository { return m.wrap(m.MemoryStore).Products() }
func (m *MockStore) Refunds() store.RefundRepository   { return m.wrap(m.MemoryStore).Refunds() }

func (m *MockStore) WithinTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	if err := m.check("WithinTx", ""); err != nil {
		return err
	}
	return m.MemoryStore.WithinTx(ctx, func(tx store.Repositories) error {
		return fn(m.wrap(tx))
	})
}

type mockRepos struct {
	store.Repositories
	m *MockStore
}

func (r *mockRepos) Products() store.ProductRepository {
	return &mockProducts{ProductRepository: r.Repositories.Products(), m: r.m}
}

func (r *mockRepos) Refunds() store.RefundRepository {
	return &mockRefunds{RefundRepository: r.Repositories.Refunds(), m: r.m}
}

type mockProducts struct {
	store.ProductRepository
	m *MockStore
}

func (p *mockProducts) DecreaseStock(ctx context.Context, productID, size string, quantity int) error {
	if err := p.m.check("DecreaseStock", productID); err != nil {
		return err
	}
	return p.ProductRepository.DecreaseStock(ctx, productID, size, quantity)
}

func (p *mockProducts) IncreaseStock(ctx context.Context, productID, size string, quantity int) error {
	if err := p.m.check("IncreaseStock", productID); err != nil {
		return err
	}
	return p.ProductRepository.IncreaseStock(ctx, productID, size, quantity)
}

type mockRefunds struct {
	store.RefundRepository
	m *MockStore
}

func (r *mockRefunds) Update(ctx context.Context, rec *refund.Record) error {
	if err := r.m.check("RefundUpdate", ""); err != nil {
		return err
	}
	return r.RefundRepository.Update(ctx, rec)
}
