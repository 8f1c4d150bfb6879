// Package store is the authoritative product and order store behind the counter.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// ErrInsufficientStock is matched by every InsufficientStockError.
var ErrInsufficientStock = errors.New("insufficient stock")

type InsufficientStockError struct {
	ProductID string
	Need      int64
	Avail     int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: need %d, have %d", e.ProductID, e.Need, e.Avail)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ErrBillConflict is returned when a bill number was already committed with
// different content. It is a store rejection, so the caller keeps its bill.
var ErrBillConflict = fmt.Errorf("bill already committed with different content: %w", model.ErrStore)

type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the SQLite file at dbPath and migrates it.
func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	// busy_timeout avoids "database is locked" under concurrent writers.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetMaxOpenConns(1)

	r := &Repository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS products(
  id           TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  unit_price   TEXT NOT NULL,
  stock        INTEGER NOT NULL DEFAULT 0 CHECK(stock >= 0),
  image_ref    TEXT NOT NULL DEFAULT '',
  updated_at   INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
CREATE TABLE IF NOT EXISTS orders(
  id             TEXT PRIMARY KEY,
  bill_number    TEXT NOT NULL UNIQUE,
  customer_name  TEXT NOT NULL DEFAULT '',
  customer_phone TEXT NOT NULL DEFAULT '',
  total          TEXT NOT NULL,
  created_ms     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items(
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id     TEXT NOT NULL,
  product_id   TEXT NOT NULL,
  display_name TEXT NOT NULL,
  qty          INTEGER NOT NULL,
  unit_price   TEXT NOT NULL,
  line_total   TEXT NOT NULL,
  FOREIGN KEY(order_id) REFERENCES orders(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);
`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.db.Close() }

// Ping checks the database is reachable.
func (r *Repository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// SeedProducts is the demo catalog loaded by Seed.
var SeedProducts = []model.CatalogSnapshot{
	{ProductID: "P1001", DisplayName: "Spiral Notebook A5", UnitPrice: decimal.RequireFromString("3.50"), AvailableStock: 40},
	{ProductID: "P1002", DisplayName: "Gel Pen Black", UnitPrice: decimal.RequireFromString("1.25"), AvailableStock: 120},
	{ProductID: "P1003", DisplayName: "Desk Lamp LED", UnitPrice: decimal.RequireFromString("24.90"), AvailableStock: 6},
	{ProductID: "P1004", DisplayName: "Stapler Mini", UnitPrice: decimal.RequireFromString("5.75"), AvailableStock: 1},
	{ProductID: "P1005", DisplayName: "Sticky Notes 3x3", UnitPrice: decimal.RequireFromString("2.10"), AvailableStock: 0},
}

// Seed inserts SeedProducts, leaving existing rows untouched.
func (r *Repository) Seed(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range SeedProducts {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO products(id, display_name, unit_price, stock, image_ref)
VALUES(?,?,?,?,?)
ON CONFLICT(id) DO NOTHING`,
			p.ProductID, p.DisplayName, p.UnitPrice.String(), p.AvailableStock, p.ImageRef); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertProduct creates or replaces a product row.
func (r *Repository) UpsertProduct(ctx context.Context, p model.CatalogSnapshot) error {
	if strings.TrimSpace(p.ProductID) == "" || p.AvailableStock < 0 || p.UnitPrice.IsNegative() {
		return fmt.Errorf("upsert product %q: %w", p.ProductID, model.ErrValidation)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO products(id, display_name, unit_price, stock, image_ref, updated_at)
VALUES(?,?,?,?,?,strftime('%s','now'))
ON CONFLICT(id) DO UPDATE SET
  display_name=excluded.display_name,
  unit_price=excluded.unit_price,
  stock=excluded.stock,
  image_ref=excluded.image_ref,
  updated_at=excluded.updated_at`,
		p.ProductID, p.DisplayName, p.UnitPrice.String(), p.AvailableStock, p.ImageRef)
	return err
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (model.CatalogSnapshot, error) {
	var (
		p     model.CatalogSnapshot
		price string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, display_name, unit_price, stock, image_ref FROM products WHERE id=?`, productID).
		Scan(&p.ProductID, &p.DisplayName, &price, &p.AvailableStock, &p.ImageRef)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CatalogSnapshot{}, fmt.Errorf("%s: %w", productID, model.ErrNotFound)
	}
	if err != nil {
		return model.CatalogSnapshot{}, err
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return model.CatalogSnapshot{}, fmt.Errorf("product %s price %q: %w", productID, price, err)
	}
	return p, nil
}

// CreateOrder persists snap as a new order and decrements stock for every line,
// all in one transaction. A bill number that was already persisted returns the
// existing confirmation with created=false and changes nothing.
func (r *Repository) CreateOrder(ctx context.Context, snap model.BillSnapshot, orderID string, at time.Time) (conf model.OrderConfirmation, created bool, err error) {
	if err := validateSnapshot(snap); err != nil {
		return model.OrderConfirmation{}, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OrderConfirmation{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, found, err := committedByBill(ctx, tx, snap.BillNumber)
	if err != nil {
		return model.OrderConfirmation{}, false, err
	}
	if found {
		if !existing.matches(snap) {
			return model.OrderConfirmation{}, false, fmt.Errorf("bill %s: %w", snap.BillNumber, ErrBillConflict)
		}
		return existing.conf, false, nil
	}

	// Validate every line before touching stock.
	need := map[string]int64{}
	var order []string
	for _, it := range snap.Items {
		if _, seen := need[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		need[it.ProductID] += it.Quantity
	}
	for _, id := range order {
		var stock int64
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id=?`, id).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return model.OrderConfirmation{}, false, fmt.Errorf("%s: %w", id, model.ErrNotFound)
		}
		if err != nil {
			return model.OrderConfirmation{}, false, err
		}
		if stock < need[id] {
			return model.OrderConfirmation{}, false, &InsufficientStockError{ProductID: id, Need: need[id], Avail: stock}
		}
	}
	for _, id := range order {
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock=stock-?, updated_at=strftime('%s','now') WHERE id=?`,
			need[id], id); err != nil {
			return model.OrderConfirmation{}, false, err
		}
	}

	total := decimal.Zero
	for _, it := range snap.Items {
		total = total.Add(it.LineTotal())
	}
	createdMs := at.UnixMilli()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO orders(id, bill_number, customer_name, customer_phone, total, created_ms)
VALUES(?,?,?,?,?,?)`,
		orderID, snap.BillNumber, snap.CustomerName, snap.CustomerPhone, total.String(), createdMs); err != nil {
		return model.OrderConfirmation{}, false, err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO order_items(order_id, product_id, display_name, qty, unit_price, line_total)
VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return model.OrderConfirmation{}, false, err
	}
	defer stmt.Close()

	for _, it := range snap.Items {
		if _, err := stmt.ExecContext(ctx,
			orderID, it.ProductID, it.DisplayName, it.Quantity, it.UnitPrice.String(), it.LineTotal().String()); err != nil {
			return model.OrderConfirmation{}, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return model.OrderConfirmation{}, false, err
	}
	return model.OrderConfirmation{
		OrderID:    orderID,
		BillNumber: snap.BillNumber,
		Total:      total,
		CreatedAt:  time.UnixMilli(createdMs).UTC(),
	}, true, nil
}

func validateSnapshot(snap model.BillSnapshot) error {
	if strings.TrimSpace(snap.BillNumber) == "" {
		return fmt.Errorf("bill number required: %w", model.ErrValidation)
	}
	if len(snap.Items) == 0 {
		return fmt.Errorf("bill %s: %w", snap.BillNumber, model.ErrEmptyCart)
	}
	for _, it := range snap.Items {
		if it.ProductID == "" || it.Quantity < 1 {
			return fmt.Errorf("bill %s line %q qty %d: %w", snap.BillNumber, it.ProductID, it.Quantity, model.ErrValidation)
		}
	}
	return nil
}

// committedOrder is a persisted order as needed to recognise a replayed submit.
type committedOrder struct {
	conf          model.OrderConfirmation
	customerName  string
	customerPhone string
	items         []model.OrderItem
}

// matches reports whether snap describes exactly the committed order.
func (c committedOrder) matches(snap model.BillSnapshot) bool {
	if snap.CustomerName != c.customerName || snap.CustomerPhone != c.customerPhone {
		return false
	}
	if len(snap.Items) != len(c.items) {
		return false
	}
	total := decimal.Zero
	for i, it := range snap.Items {
		got := c.items[i]
		if it.ProductID != got.ProductID || it.Quantity != got.Quantity || !it.UnitPrice.Equal(got.UnitPrice) {
			return false
		}
		total = total.Add(it.LineTotal())
	}
	return total.Equal(c.conf.Total)
}

func committedByBill(ctx context.Context, tx *sql.Tx, billNumber string) (committedOrder, bool, error) {
	var (
		c     committedOrder
		total string
		ms    int64
	)
	err := tx.QueryRowContext(ctx, `
SELECT id, bill_number, customer_name, customer_phone, total, created_ms
FROM orders WHERE bill_number=?`, billNumber).
		Scan(&c.conf.OrderID, &c.conf.BillNumber, &c.customerName, &c.customerPhone, &total, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return committedOrder{}, false, nil
	}
	if err != nil {
		return committedOrder{}, false, err
	}
	if c.conf.Total, err = decimal.NewFromString(total); err != nil {
		return committedOrder{}, false, err
	}
	c.conf.CreatedAt = time.UnixMilli(ms).UTC()
	if c.items, err = listItems(ctx, tx, c.conf.OrderID); err != nil {
		return committedOrder{}, false, err
	}
	return c, true, nil
}

// IncrementStock adds qty units to a product and returns the new stock.
func (r *Repository) IncrementStock(ctx context.Context, productID string, qty int64) (model.StockConfirmation, error) {
	if qty < 1 {
		return model.StockConfirmation{}, fmt.Errorf("increment %s by %d: %w", productID, qty, model.ErrValidation)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StockConfirmation{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE products SET stock=stock+?, updated_at=strftime('%s','now')
WHERE id=? AND stock <= ? - ?`, qty, productID, int64(math.MaxInt64), qty)
	if err != nil {
		return model.StockConfirmation{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.StockConfirmation{}, err
	} else if n == 0 {
		var stock int64
		err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id=?`, productID).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return model.StockConfirmation{}, fmt.Errorf("%s: %w", productID, model.ErrNotFound)
		}
		if err != nil {
			return model.StockConfirmation{}, err
		}
		return model.StockConfirmation{}, fmt.Errorf("increment %s by %d overflows stock %d: %w", productID, qty, stock, model.ErrValidation)
	}

	conf := model.StockConfirmation{ProductID: productID}
	if err := tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id=?`, productID).Scan(&conf.NewStock); err != nil {
		return model.StockConfirmation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.StockConfirmation{}, err
	}
	return conf, nil
}

func (r *Repository) GetOrder(ctx context.Context, billNumber string) (model.Order, error) {
	var (
		o     model.Order
		total string
		ms    int64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, bill_number, customer_name, customer_phone, total, created_ms
FROM orders WHERE bill_number=?`, billNumber).
		Scan(&o.OrderID, &o.BillNumber, &o.CustomerName, &o.CustomerPhone, &total, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, fmt.Errorf("%s: %w", billNumber, model.ErrOrderNotFound)
	}
	if err != nil {
		return model.Order{}, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return model.Order{}, err
	}
	o.CreatedAt = time.UnixMilli(ms).UTC()

	items, err := listItems(ctx, r.db, o.OrderID)
	if err != nil {
		return model.Order{}, err
	}
	o.Items = items
	return o, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listItems(ctx context.Context, q querier, orderID string) ([]model.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
SELECT product_id, display_name, qty, unit_price, line_total
FROM order_items WHERE order_id=? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var (
			it          model.OrderItem
			unit, total string
		)
		if err := rows.Scan(&it.ProductID, &it.DisplayName, &it.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if it.LineTotal, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
