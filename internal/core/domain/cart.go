package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the lines one terminal is about to sell. Quantities never exceed
// the stock of the product passed to the mutating call; requests beyond that
// are clamped rather than rejected.
type Cart struct {
	lines []CartLine
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) index(itemID string) int {
	for i := range c.lines {
		if c.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// AddLine adds one unit of p. It reports false when no unit could be added
// because p is out of stock or the line already holds all of it. A line left
// above p.Stock by an earlier stock drop is clamped down to it (and removed
// at zero).
func (c *Cart) AddLine(p Product) bool {
	i := c.index(p.ID)
	if i < 0 {
		if p.Stock <= 0 {
			return false
		}
		c.lines = append(c.lines, CartLine{ItemID: p.ID, Name: p.Name, Quantity: 1, UnitPrice: p.UnitPrice})
		return true
	}
	if c.lines[i].Quantity >= p.Stock {
		if c.lines[i].Quantity > p.Stock {
			c.SetQuantity(p, p.Stock)
		}
		return false
	}
	c.lines[i].Quantity++
	return true
}

// SetQuantity sets the line for p to requested, clamped to p.Stock.
// A result of zero or less removes the line. It returns the quantity held.
func (c *Cart) SetQuantity(p Product, requested int) int {
	qty := requested
	if qty > p.Stock {
		qty = p.Stock
	}
	if qty <= 0 {
		c.Remove(p.ID)
		return 0
	}

	if i := c.index(p.ID); i >= 0 {
		c.lines[i].Quantity = qty
		return qty
	}
	c.lines = append(c.lines, CartLine{ItemID: p.ID, Name: p.Name, Quantity: qty, UnitPrice: p.UnitPrice})
	return qty
}

func (c *Cart) Remove(itemID string) bool {
	i := c.index(itemID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

func (c *Cart) Quantity(itemID string) int {
	if i := c.index(itemID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// Total is recomputed from the current lines on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Clone() *Cart {
	return &Cart{lines: c.Lines()}
}

type cartJSON struct {
	Lines []CartLine `json:"lines"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(cartJSON{Lines: c.Lines()})
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var v cartJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.lines = v.Lines
	return nil
}
