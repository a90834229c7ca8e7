package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

var errStoreClosed = fmt.Errorf("%w: memory store closed", domain.ErrPersistence)

type writeOp struct {
	apply  func() error
	result chan error
}

// MemoryStore is the in-process catalog and ledger. All writes are funnelled
// through a single writer goroutine, so stock checks and decrements for a
// commit are serialised against every other write. Reads take the read lock
// and may run concurrently.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	sales    []domain.Sale

	writes    chan writeOp
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		products: make(map[string]domain.Product),
		writes:   make(chan writeOp),
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writerLoop()
	return m
}

func (m *MemoryStore) writerLoop() {
	defer m.wg.Done()
	for {
		select {
		case op := <-m.writes:
			m.mu.Lock()
			err := op.apply()
			m.mu.Unlock()
			op.result <- err
		case <-m.done:
			return
		}
	}
}

// submit blocks until fn has run on the writer goroutine. Once accepted an
// operation always completes, so cancellation is only honoured while queued.
func (m *MemoryStore) submit(ctx context.Context, fn func() error) error {
	op := writeOp{apply: fn, result: make(chan error, 1)}
	select {
	case m.writes <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return errStoreClosed
	}
	return <-op.result
}

func (m *MemoryStore) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *MemoryStore) List(ctx context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (m *MemoryStore) Create(ctx context.Context, product domain.Product) error {
	return m.submit(ctx, func() error {
		if _, exists := m.products[product.ID]; exists {
			return fmt.Errorf("product %s: %w", product.ID, domain.ErrAlreadyExists)
		}
		m.products[product.ID] = product
		return nil
	})
}

func (m *MemoryStore) Update(ctx context.Context, product domain.Product) error {
	return m.submit(ctx, func() error {
		current, ok := m.products[product.ID]
		if !ok {
			return fmt.Errorf("product %s: %w", product.ID, domain.ErrNotFound)
		}
		if current.Version != product.Version {
			return fmt.Errorf("product %s at version %d, update based on %d: %w", product.ID, current.Version, product.Version, domain.ErrConflict)
		}
		product.Version++
		product.CreatedAt = current.CreatedAt
		product.UpdatedAt = time.Now().UTC()
		m.products[product.ID] = product
		return nil
	})
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	return m.submit(ctx, func() error {
		if _, ok := m.products[id]; !ok {
			return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
		}
		delete(m.products, id)
		return nil
	})
}

func (m *MemoryStore) DecrementStock(ctx context.Context, id string, amount int) error {
	if amount <= 0 {
		return domain.Invalid("decrement amount must be positive")
	}
	return m.submit(ctx, func() error {
		return m.decrementLocked(id, amount)
	})
}

func (m *MemoryStore) decrementLocked(id string, amount int) error {
	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if p.Stock < amount {
		return fmt.Errorf("product %s has %d, cannot remove %d: %w", id, p.Stock, amount, domain.ErrNegativeStock)
	}
	p.Stock -= amount
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	m.products[id] = p
	return nil
}

// Append adds a sale to the ledger without touching stock.
func (m *MemoryStore) Append(ctx context.Context, sale domain.Sale) error {
	return m.submit(ctx, func() error {
		m.sales = append(m.sales, copySale(sale))
		return nil
	})
}

// CommitSale checks every line before applying anything, so a short line
// leaves both stock and ledger untouched.
func (m *MemoryStore) CommitSale(ctx context.Context, sale domain.Sale) error {
	return m.submit(ctx, func() error {
		for _, l := range sale.Lines {
			p, ok := m.products[l.ItemID]
			if !ok {
				return fmt.Errorf("product %s: %w", l.ItemID, domain.ErrNotFound)
			}
			if p.Stock < l.Quantity {
				return fmt.Errorf("product %s has %d, cannot remove %d: %w", l.ItemID, p.Stock, l.Quantity, domain.ErrNegativeStock)
			}
		}
		for _, l := range sale.Lines {
			if err := m.decrementLocked(l.ItemID, l.Quantity); err != nil {
				return err
			}
		}
		m.sales = append(m.sales, copySale(sale))
		return nil
	})
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Sale, len(m.sales))
	for i, s := range m.sales {
		out[i] = copySale(s)
	}
	return out, nil
}

func (m *MemoryStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Sale
	for _, s := range m.sales {
		if !s.Timestamp.Before(from) && s.Timestamp.Before(to) {
			out = append(out, copySale(s))
		}
	}
	return out, nil
}

func copySale(s domain.Sale) domain.Sale {
	lines := make([]domain.SaleLine, len(s.Lines))
	copy(lines, s.Lines)
	s.Lines = lines
	return s
}
