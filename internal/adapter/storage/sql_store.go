package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// SQLStore is the relational catalog and ledger. Queries are written with
// '?' placeholders and rebound for the driver, so the same store serves
// MySQL and Postgres.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	return &SQLStore{
		db:  sqlx.NewDb(db, driverName),
		now: func() time.Time { return time.Now().UTC() },
	}
}

const productColumns = `id, name, category, unit_price, stock, version, created_at, updated_at`

func (s *SQLStore) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, classify("list products", err)
	}
	return products, nil
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := s.db.GetContext(ctx, &p,
		s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, classify("query product", err)
	}
	return p, nil
}

func (s *SQLStore) Create(ctx context.Context, p domain.Product) error {
	if p.Version == 0 {
		p.Version = 1
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO products (id, name, category, unit_price, stock, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Name, p.Category, p.UnitPrice, p.Stock, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return classify("insert product", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, p domain.Product) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE products
		SET name = ?, category = ?, unit_price = ?, stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`),
		p.Name, p.Category, p.UnitPrice, p.Stock, s.now(), p.ID, p.Version,
	)
	if err != nil {
		return classify("update product", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return classify("update product", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, p.ID); err != nil {
			return err
		}
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrConflict)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return classify("delete product", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return classify("delete product", err)
	}
	if rows == 0 {
		return fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) DecrementStock(ctx context.Context, id string, amount int) error {
	if amount <= 0 {
		return domain.Invalid("decrement amount must be positive")
	}
	return decrementStock(ctx, s.db, s.db.Rebind, id, amount, s.now())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// decrementStock is the only place stock goes down: the condition in the
// WHERE clause makes check and write a single statement.
func decrementStock(ctx context.Context, db execer, rebind func(string) string, id string, amount int, at time.Time) error {
	result, err := db.ExecContext(ctx, rebind(`
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = ?
		WHERE id = ? AND stock >= ?`),
		amount, at, id, amount,
	)
	if err != nil {
		return classify("update stock", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return classify("update stock", err)
	}
	if rows == 0 {
		return fmt.Errorf("product %s cannot remove %d: %w", id, amount, domain.ErrNegativeStock)
	}
	return nil
}

// Append records a sale without touching stock.
func (s *SQLStore) Append(ctx context.Context, sale domain.Sale) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback()

	if err := insertSale(ctx, tx, sale); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// CommitSale inserts the sale and applies every conditional decrement in one
// transaction. Any short line rolls the whole transaction back.
func (s *SQLStore) CommitSale(ctx context.Context, sale domain.Sale) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback()

	if err := insertSale(ctx, tx, sale); err != nil {
		return err
	}

	at := s.now()
	for _, l := range sale.Lines {
		if err := decrementStock(ctx, tx, tx.Rebind, l.ItemID, l.Quantity, at); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

func insertSale(ctx context.Context, tx *sqlx.Tx, sale domain.Sale) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO sales (id, cashier_id, payment_method, total_amount, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		sale.ID, sale.CashierID, string(sale.PaymentMethod), sale.TotalAmount, sale.Timestamp,
	)
	if err != nil {
		return classify("insert sale", err)
	}

	for i, l := range sale.Lines {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO sale_lines (sale_id, line_no, item_id, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`),
			sale.ID, i, l.ItemID, l.Name, l.Quantity, l.UnitPrice,
		)
		if err != nil {
			return classify("insert sale line", err)
		}
	}
	return nil
}

type saleRow struct {
	ID            string          `db:"id"`
	CashierID     string          `db:"cashier_id"`
	PaymentMethod string          `db:"payment_method"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	CreatedAt     time.Time       `db:"created_at"`
	LineNo        int             `db:"line_no"`
	ItemID        string          `db:"item_id"`
	Name          string          `db:"name"`
	Quantity      int             `db:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price"`
}

const saleSelect = `
	SELECT s.id, s.cashier_id, s.payment_method, s.total_amount, s.created_at,
	       l.line_no, l.item_id, l.name, l.quantity, l.unit_price
	FROM sales s
	JOIN sale_lines l ON l.sale_id = s.id`

func (s *SQLStore) ListAll(ctx context.Context) ([]domain.Sale, error) {
	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, saleSelect+` ORDER BY s.seq, l.line_no`); err != nil {
		return nil, classify("list sales", err)
	}
	return groupSales(rows), nil
}

func (s *SQLStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	var rows []saleRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(saleSelect+` WHERE s.created_at >= ? AND s.created_at < ? ORDER BY s.seq, l.line_no`),
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, classify("list sales", err)
	}
	return groupSales(rows), nil
}

// groupSales folds joined rows, already ordered by sale then line, back into
// sales.
func groupSales(rows []saleRow) []domain.Sale {
	var sales []domain.Sale
	for _, r := range rows {
		if len(sales) == 0 || sales[len(sales)-1].ID != r.ID {
			sales = append(sales, domain.Sale{
				ID:            r.ID,
				Timestamp:     r.CreatedAt.UTC(),
				CashierID:     r.CashierID,
				PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
				TotalAmount:   r.TotalAmount,
			})
		}
		last := &sales[len(sales)-1]
		last.Lines = append(last.Lines, domain.SaleLine{
			ItemID:    r.ItemID,
			Name:      r.Name,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return sales
}

// classify maps driver errors onto domain sentinels. Unique violations
// become ErrAlreadyExists; anything else is a persistence failure.
func classify(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyExists)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyExists)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
