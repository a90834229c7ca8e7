package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

const (
	DefaultLowStockThreshold = 10
	DefaultSalesByDayWindow  = 7
	DefaultTopSellerLimit    = 5
)

type DashboardStats struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	RevenueToday      decimal.Decimal `json:"revenue_today"`
	TotalTransactions int             `json:"total_transactions"`
	LowStockItems     int             `json:"low_stock_items"`
}

type DailySales struct {
	Date         string          `json:"date"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
}

type TopSeller struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ReportService aggregates ledger and catalog snapshots. It never writes.
type ReportService struct {
	catalog           port.CatalogRepository
	ledger            port.LedgerRepository
	lowStockThreshold int
}

func NewReportService(catalog port.CatalogRepository, ledger port.LedgerRepository, lowStockThreshold int) *ReportService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &ReportService{catalog: catalog, ledger: ledger, lowStockThreshold: lowStockThreshold}
}

func (s *ReportService) Dashboard(ctx context.Context, now time.Time) (DashboardStats, error) {
	sales, err := s.ledger.ListAll(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list sales: %w", err)
	}
	products, err := s.catalog.List(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list products: %w", err)
	}

	today := dayKey(now)
	stats := DashboardStats{
		TotalRevenue:      decimal.Zero,
		RevenueToday:      decimal.Zero,
		TotalTransactions: len(sales),
	}
	for _, sale := range sales {
		stats.TotalRevenue = stats.TotalRevenue.Add(sale.TotalAmount)
		if dayKey(sale.Timestamp) == today {
			stats.RevenueToday = stats.RevenueToday.Add(sale.TotalAmount)
		}
	}
	for _, p := range products {
		if p.Stock < s.lowStockThreshold {
			stats.LowStockItems++
		}
	}
	return stats, nil
}

// SalesByDay returns per-day revenue in ascending date order, keeping the
// most recent days entries.
func (s *ReportService) SalesByDay(ctx context.Context, days int) ([]DailySales, error) {
	if days <= 0 {
		days = DefaultSalesByDayWindow
	}
	sales, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	byDay := make(map[string]*DailySales)
	for _, sale := range sales {
		key := dayKey(sale.Timestamp)
		d, ok := byDay[key]
		if !ok {
			d = &DailySales{Date: key, Revenue: decimal.Zero}
			byDay[key] = d
		}
		d.Revenue = d.Revenue.Add(sale.TotalAmount)
		d.Transactions++
	}

	out := make([]DailySales, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > days {
		out = out[len(out)-days:]
	}
	return out, nil
}

// TopSellers ranks products by units sold. Items no longer in the catalog
// are left out.
func (s *ReportService) TopSellers(ctx context.Context, limit int) ([]TopSeller, error) {
	if limit <= 0 {
		limit = DefaultTopSellerLimit
	}
	sales, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	units := make(map[string]int)
	for _, sale := range sales {
		for _, l := range sale.Lines {
			units[l.ItemID] += l.Quantity
		}
	}

	out := make([]TopSeller, 0, len(units))
	for id, qty := range units {
		name, ok := names[id]
		if !ok {
			continue
		}
		out = append(out, TopSeller{ItemID: id, Name: name, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ItemID < out[j].ItemID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sales lists ledger records in commit order. A zero from or to leaves that
// side of the [from, to) range open.
func (s *ReportService) Sales(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	if from.IsZero() && to.IsZero() {
		return s.ledger.ListAll(ctx)
	}
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	if !to.After(from) {
		return nil, domain.Invalid("sales range end must be after start")
	}
	return s.ledger.ListBetween(ctx, from, to)
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
