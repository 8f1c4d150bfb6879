// Package model defines the domain types shared by the counter and the store.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanEvent is one raw decode handed over by a scanning source.
type ScanEvent struct {
	RawPayload string
	ObservedAt time.Time
}

// CatalogSnapshot is a read-only copy of a catalog record captured at scan time.
type CatalogSnapshot struct {
	ProductID      string          `json:"product_id"`
	DisplayName    string          `json:"display_name"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	AvailableStock int64           `json:"available_stock"`
	ImageRef       string          `json:"image_ref,omitempty"`
}

// InStock reports whether the snapshot allows at least one unit to be sold.
func (s CatalogSnapshot) InStock() bool { return s.AvailableStock > 0 }

// LineItem is one product's quantity entry within a bill.
// StockCeiling is the available stock captured when the product first entered the bill.
type LineItem struct {
	ProductID    string          `json:"product_id"`
	DisplayName  string          `json:"display_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int64           `json:"quantity"`
	StockCeiling int64           `json:"stock_ceiling"`
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// BillSnapshot is the immutable copy of a bill submitted by finalize.
type BillSnapshot struct {
	BillNumber    string          `json:"bill_number"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	TakenAt       time.Time       `json:"taken_at"`
}

// OrderConfirmation is returned by the store once an order is persisted.
type OrderConfirmation struct {
	OrderID    string          `json:"order_id"`
	BillNumber string          `json:"bill_number"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StockIncrementRequest asks the store to add stock to one product.
type StockIncrementRequest struct {
	ProductID     string `json:"product_id"`
	QuantityToAdd int64  `json:"quantity_to_add"`
}

// StockConfirmation carries the authoritative stock after an increment.
type StockConfirmation struct {
	ProductID string `json:"product_id"`
	NewStock  int64  `json:"new_stock"`
}

// Order is a persisted sale as read back from the store.
type Order struct {
	OrderID       string          `json:"order_id"`
	BillNumber    string          `json:"bill_number"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	DisplayName string          `json:"display_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
