package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "CASH"
	PaymentCard    PaymentMethod = "CARD"
	PaymentDigital PaymentMethod = "DIGITAL"
)

// ParsePaymentMethod accepts any case and defaults to cash when empty.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return PaymentCash, nil
	case PaymentCash, PaymentCard, PaymentDigital:
		return m, nil
	default:
		return "", Invalid("unknown payment method %q", s)
	}
}

type SaleLine struct {
	ItemID    string          `json:"item_id" db:"item_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sale is an immutable ledger record. TotalAmount is always the exact sum of
// the line subtotals.
type Sale struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	CashierID     string          `json:"cashier_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Lines         []SaleLine      `json:"lines"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewSale stamps a fresh id and timestamp and computes the total.
func NewSale(cashierID string, method PaymentMethod, lines []SaleLine, at time.Time) (Sale, error) {
	if strings.TrimSpace(cashierID) == "" {
		return Sale{}, Invalid("cashier id is required")
	}
	if len(lines) == 0 {
		return Sale{}, ErrEmptyCart
	}

	seen := make(map[string]struct{}, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		if l.ItemID == "" {
			return Sale{}, Invalid("sale line without item id")
		}
		if _, dup := seen[l.ItemID]; dup {
			return Sale{}, Invalid("duplicate sale line for item %s", l.ItemID)
		}
		seen[l.ItemID] = struct{}{}
		if l.Quantity < 1 {
			return Sale{}, Invalid("quantity for item %s must be at least 1", l.ItemID)
		}
		if l.UnitPrice.IsNegative() {
			return Sale{}, Invalid("unit price for item %s must not be negative", l.ItemID)
		}
		total = total.Add(l.Subtotal())
	}

	owned := make([]SaleLine, len(lines))
	copy(owned, lines)

	return Sale{
		ID:            uuid.NewString(),
		Timestamp:     at.UTC(),
		CashierID:     cashierID,
		PaymentMethod: method,
		Lines:         owned,
		TotalAmount:   total,
	}, nil
}

func (s Sale) Units() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}
