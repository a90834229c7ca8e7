package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/retail-pos/internal/adapter/storage"
	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/core/service"
	"github.com/rl1809/retail-pos/internal/logger"
)

const (
	itemID        = "last-units-item"
	initialStock  = 20
	terminalCount = 50
	unitsPerCart  = 1
)

func main() {
	ctx := context.Background()

	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	log := logger.New(cfg)
	defer log.Sync()

	store := storage.NewMemoryStore()
	defer store.Close()
	cache := storage.NewMemoryCache(0)

	catalogService := service.NewCatalogService(store, log)
	cartService := service.NewCartService(store, cache, log)
	checkoutService := service.NewCheckoutService(store, store, cache, cache, log)

	if _, err := catalogService.Create(ctx, itemID, "Last units", "Stress", decimal.RequireFromString("9.99"), initialStock); err != nil {
		log.Fatal("failed to create product", zap.Error(err))
	}

	// Every terminal fills its cart while stock is still available, so each
	// one passes the add-time clamp and the race is decided at commit.
	for i := 0; i < terminalCount; i++ {
		if _, err := cartService.SetQuantity(ctx, terminalID(i), itemID, unitsPerCart); err != nil {
			log.Fatal("failed to fill cart", zap.Error(err))
		}
	}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < terminalCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := checkoutService.Checkout(ctx, service.CheckoutRequest{
				TerminalID: terminalID(i),
				CashierID:  fmt.Sprintf("cashier-%d", i),
				RequestID:  fmt.Sprintf("stress-%d", i),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrNegativeStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				log.Error("unexpected checkout error", zap.Int("terminal", i), zap.Error(err))
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	product, err := store.FindByID(ctx, itemID)
	if err != nil {
		log.Fatal("failed to read product", zap.Error(err))
	}
	sales, err := store.ListAll(ctx)
	if err != nil {
		log.Fatal("failed to read ledger", zap.Error(err))
	}
	committed := 0
	for _, s := range sales {
		committed += s.Units()
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Terminals:        %d\n", terminalCount)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Other errors:     %d\n", otherCount.Load())
	fmt.Printf("Ledger units:     %d\n", committed)
	fmt.Printf("Final Stock:      %d\n", product.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := int32(initialStock / unitsPerCart)
	if success == expected && soldOut == int32(terminalCount)-expected {
		fmt.Printf("PASS: exactly %d checkouts succeeded, %d sold out\n", expected, soldOut)
	} else {
		fmt.Printf("FAIL: expected %d success/%d sold out, got %d/%d\n",
			expected, int32(terminalCount)-expected, success, soldOut)
	}

	if product.Stock == 0 && committed == initialStock {
		fmt.Println("PASS: stock depleted to 0 and matches the ledger")
	} else {
		fmt.Printf("FAIL: stock %d, ledger units %d\n", product.Stock, committed)
	}
}

func terminalID(i int) string {
	return fmt.Sprintf("terminal-%03d", i)
}
