package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item.
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Category  string          `json:"category" db:"category"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Stock     int             `json:"stock" db:"stock"`
	Version   int             `json:"version" db:"version"` // optimistic locking
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// NewProduct builds a validated product. An empty id is replaced by a fresh UUID.
func NewProduct(id, name, category string, unitPrice decimal.Decimal, stock int) (Product, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	p := Product{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Category:  strings.TrimSpace(category),
		UnitPrice: unitPrice,
		Stock:     stock,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (p Product) Validate() error {
	if p.ID == "" {
		return Invalid("product id is required")
	}
	if p.Name == "" {
		return Invalid("product name is required")
	}
	if p.UnitPrice.IsNegative() {
		return Invalid("unit price must not be negative")
	}
	if p.Stock < 0 {
		return Invalid("stock must not be negative")
	}
	return nil
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductUpdate is a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Name      *string
	Category  *string
	UnitPrice *decimal.Decimal
	Stock     *int
}

// Apply returns a copy of p with the update applied and validated.
func (u ProductUpdate) Apply(p Product) (Product, error) {
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.Category != nil {
		p.Category = strings.TrimSpace(*u.Category)
	}
	if u.UnitPrice != nil {
		p.UnitPrice = *u.UnitPrice
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	p.UpdatedAt = time.Now().UTC()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}
