package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func product(t *testing.T, id string, price string, stock int) Product {
	t.Helper()
	p, err := NewProduct(id, "item "+id, "General", decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	return p
}

func TestCart_AddLineClampsAtStock(t *testing.T) {
	x := product(t, "X", "10.00", 3)
	cart := NewCart()

	for i := 1; i <= 3; i++ {
		assert.True(t, cart.AddLine(x))
		assert.Equal(t, i, cart.Quantity("X"))
	}

	assert.False(t, cart.AddLine(x), "fourth add must be a no-op")
	assert.Equal(t, 3, cart.Quantity("X"))
	assert.True(t, decimal.RequireFromString("30").Equal(cart.Total()))
}

func TestCart_AddLineOutOfStock(t *testing.T) {
	cart := NewCart()
	assert.False(t, cart.AddLine(product(t, "X", "1", 0)))
	assert.True(t, cart.IsEmpty())
}

func TestCart_AddLineRevalidatesAgainstCurrentStock(t *testing.T) {
	x := product(t, "X", "1", 5)
	cart := NewCart()
	cart.SetQuantity(x, 4)

	x.Stock = 4
	assert.False(t, cart.AddLine(x))
	assert.Equal(t, 4, cart.Quantity("X"))
}

func TestCart_AddLineClampsLineAboveStockDown(t *testing.T) {
	x := product(t, "X", "1", 5)
	cart := NewCart()
	cart.SetQuantity(x, 4)

	x.Stock = 2
	assert.False(t, cart.AddLine(x), "no unit is added")
	assert.Equal(t, 2, cart.Quantity("X"), "line is brought down to current stock")

	x.Stock = 0
	assert.False(t, cart.AddLine(x))
	assert.True(t, cart.IsEmpty(), "line is dropped once stock is gone")
}

func TestCart_PropertyAddLineNeverLeavesLineAboveStock(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Product{ID: "p", Name: "p", UnitPrice: decimal.NewFromInt(1)}
		cart := NewCart()

		stocks := rapid.SliceOfN(rapid.IntRange(0, 10), 1, 30).Draw(t, "stocks")
		for _, stock := range stocks {
			p.Stock = stock
			cart.AddLine(p)
			if q := cart.Quantity("p"); q > stock {
				t.Fatalf("quantity %d above stock %d after add", q, stock)
			}
		}
	})
}

func TestCart_SetQuantity(t *testing.T) {
	x := product(t, "X", "2.50", 7)

	t.Run("clamps to stock", func(t *testing.T) {
		cart := NewCart()
		cart.AddLine(x)
		assert.Equal(t, 7, cart.SetQuantity(x, 1000))
		assert.Equal(t, 7, cart.Quantity("X"))
	})

	t.Run("sets exactly within stock", func(t *testing.T) {
		cart := NewCart()
		cart.AddLine(x)
		assert.Equal(t, 5, cart.SetQuantity(x, 5))
	})

	t.Run("zero removes the line", func(t *testing.T) {
		cart := NewCart()
		cart.AddLine(x)
		assert.Equal(t, 0, cart.SetQuantity(x, 0))
		assert.True(t, cart.IsEmpty())
	})

	t.Run("negative removes the line", func(t *testing.T) {
		cart := NewCart()
		cart.AddLine(x)
		cart.SetQuantity(x, -3)
		assert.True(t, cart.IsEmpty())
	})

	t.Run("creates a missing line", func(t *testing.T) {
		cart := NewCart()
		assert.Equal(t, 2, cart.SetQuantity(x, 2))
		assert.Equal(t, 1, cart.Len())
	})

	t.Run("sold out product drops the line", func(t *testing.T) {
		cart := NewCart()
		cart.AddLine(x)
		soldOut := x
		soldOut.Stock = 0
		assert.Equal(t, 0, cart.SetQuantity(soldOut, 3))
		assert.True(t, cart.IsEmpty())
	})
}

func TestCart_LinesKeepInsertionOrder(t *testing.T) {
	cart := NewCart()
	cart.AddLine(product(t, "b", "1", 1))
	cart.AddLine(product(t, "a", "1", 1))
	cart.AddLine(product(t, "c", "1", 1))
	cart.Remove("a")

	lines := cart.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "b", lines[0].ItemID)
	assert.Equal(t, "c", lines[1].ItemID)
}

func TestCart_CloneIsIndependent(t *testing.T) {
	x := product(t, "X", "1", 5)
	cart := NewCart()
	cart.AddLine(x)

	clone := cart.Clone()
	clone.SetQuantity(x, 4)
	clone.Clear()

	assert.Equal(t, 1, cart.Quantity("X"))
}

func TestCart_JSONRoundTripKeepsLines(t *testing.T) {
	cart := NewCart()
	cart.SetQuantity(product(t, "X", "1.25", 9), 3)

	data, err := json.Marshal(cart)
	require.NoError(t, err)

	restored := NewCart()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, 3, restored.Quantity("X"))
	assert.True(t, cart.Total().Equal(restored.Total()))
}

func TestCart_PropertyQuantityNeverExceedsStock(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stock := rapid.IntRange(0, 20).Draw(t, "stock")
		p := Product{ID: "p", Name: "p", UnitPrice: decimal.NewFromInt(1), Stock: stock}
		cart := NewCart()

		ops := rapid.SliceOfN(rapid.IntRange(-5, 40), 1, 30).Draw(t, "ops")
		for _, op := range ops {
			if op%2 == 0 {
				cart.AddLine(p)
			} else {
				cart.SetQuantity(p, op)
			}
			if q := cart.Quantity("p"); q > stock || q < 0 {
				t.Fatalf("quantity %d outside [0, %d]", q, stock)
			}
		}
	})
}

func TestCart_PropertyTotalMatchesNaiveSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cart := NewCart()
		n := rapid.IntRange(0, 10).Draw(t, "lines")
		want := decimal.Zero
		for i := 0; i < n; i++ {
			cents := rapid.Int64Range(0, 1_000_000).Draw(t, "cents")
			qty := rapid.IntRange(1, 50).Draw(t, "qty")
			price := decimal.New(cents, -2)
			p := Product{ID: string(rune('a' + i)), Name: "p", UnitPrice: price, Stock: 100}
			cart.SetQuantity(p, qty)
			want = want.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}
		if !cart.Total().Equal(want) {
			t.Fatalf("total %s, want %s", cart.Total(), want)
		}
	})
}
