package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// mockStore is a catalog, ledger and committer in one, guarded by a mutex.
type mockStore struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	sales     []domain.Sale
	commitErr error
	listErr   error
}

func newMockStore(products ...domain.Product) *mockStore {
	m := &mockStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *mockStore) setStock(id string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Stock = stock
	m.products[id] = p
}

func (m *mockStore) setPrice(id string, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.UnitPrice = decimal.RequireFromString(price)
	m.products[id] = p
}

func (m *mockStore) List(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) FindByID(ctx context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (m *mockStore) Create(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockStore) Update(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.products[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != p.Version {
		return domain.ErrConflict
	}
	p.Version++
	m.products[p.ID] = p
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockStore) DecrementStock(ctx context.Context, id string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	if p.Stock < amount {
		return domain.ErrNegativeStock
	}
	p.Stock -= amount
	m.products[id] = p
	return nil
}

func (m *mockStore) Append(ctx context.Context, sale domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, sale)
	return nil
}

func (m *mockStore) CommitSale(ctx context.Context, sale domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	for _, l := range sale.Lines {
		if m.products[l.ItemID].Stock < l.Quantity {
			return domain.ErrNegativeStock
		}
	}
	for _, l := range sale.Lines {
		p := m.products[l.ItemID]
		p.Stock -= l.Quantity
		m.products[l.ItemID] = p
	}
	m.sales = append(m.sales, sale)
	return nil
}

func (m *mockStore) ListAll(ctx context.Context) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Sale, len(m.sales))
	copy(out, m.sales)
	return out, nil
}

func (m *mockStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Sale
	for _, s := range all {
		if !s.Timestamp.Before(from) && s.Timestamp.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

// mockCache implements both CacheRepository and CartRepository.
type mockCache struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	carts          map[string]*domain.Cart
	deleteErr      error
}

func newMockCache() *mockCache {
	return &mockCache{
		idempotencySet: make(map[string]bool),
		carts:          make(map[string]*domain.Cart),
	}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCache) LoadCart(ctx context.Context, terminalID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[terminalID]; ok {
		return c.Clone(), nil
	}
	return domain.NewCart(), nil
}

func (m *mockCache) SaveCart(ctx context.Context, terminalID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[terminalID] = cart.Clone()
	return nil
}

func (m *mockCache) DeleteCart(ctx context.Context, terminalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.carts, terminalID)
	return nil
}

func newProduct(id, name, price string, stock int) domain.Product {
	p, err := domain.NewProduct(id, name, "General", decimal.RequireFromString(price), stock)
	if err != nil {
		panic(err)
	}
	return p
}
