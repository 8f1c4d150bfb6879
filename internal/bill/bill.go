// Package bill implements the in-progress sale: line items keyed by product,
// bounded by the stock captured when each product entered the bill.
package bill

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// Bill is not safe for concurrent use; the owning flow serializes access.
type Bill struct {
	numbers       *NumberGenerator
	number        string
	customerName  string
	customerPhone string
	items         []model.LineItem
}

func New(numbers *NumberGenerator) *Bill {
	return &Bill{numbers: numbers, number: numbers.Next()}
}

func (b *Bill) Number() string { return b.number }

func (b *Bill) Customer() (name, phone string) { return b.customerName, b.customerPhone }

func (b *Bill) SetCustomer(name, phone string) {
	b.customerName = strings.TrimSpace(name)
	b.customerPhone = strings.TrimSpace(phone)
}

// AddOrIncrement puts one unit of the scanned product on the bill.
// A new line captures the snapshot's stock as its ceiling; an existing line
// grows only while below that ceiling.
func (b *Bill) AddOrIncrement(s model.CatalogSnapshot) (model.LineItem, error) {
	if i := b.index(s.ProductID); i >= 0 {
		it := &b.items[i]
		if it.Quantity >= it.StockCeiling {
			return *it, fmt.Errorf("%s: only %d available: %w", it.DisplayName, it.StockCeiling, model.ErrExceedsAvailable)
		}
		it.Quantity++
		return *it, nil
	}
	if !s.InStock() {
		return model.LineItem{}, fmt.Errorf("%s: %w", s.DisplayName, model.ErrOutOfStock)
	}
	it := model.LineItem{
		ProductID:    s.ProductID,
		DisplayName:  s.DisplayName,
		UnitPrice:    s.UnitPrice,
		Quantity:     1,
		StockCeiling: s.AvailableStock,
	}
	b.items = append(b.items, it)
	return it, nil
}

// SetQuantity sets a line's quantity exactly. Zero or less removes the line;
// more than the ceiling fails and keeps the previous quantity.
func (b *Bill) SetQuantity(productID string, qty int64) error {
	i := b.index(productID)
	if qty <= 0 {
		b.Remove(productID)
		return nil
	}
	if i < 0 {
		return fmt.Errorf("line item %s: %w", productID, model.ErrNotFound)
	}
	it := &b.items[i]
	if qty > it.StockCeiling {
		return fmt.Errorf("%s: requested %d, only %d available: %w", it.DisplayName, qty, it.StockCeiling, model.ErrExceedsAvailable)
	}
	it.Quantity = qty
	return nil
}

// Remove deletes the line for productID, if any.
func (b *Bill) Remove(productID string) {
	if i := b.index(productID); i >= 0 {
		b.items = append(b.items[:i], b.items[i+1:]...)
	}
}

// Clear discards the bill's content and starts over under a new number.
func (b *Bill) Clear() {
	b.items = nil
	b.customerName, b.customerPhone = "", ""
	b.number = b.numbers.Next()
}

// Total is recomputed from the lines on every call.
func (b *Bill) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (b *Bill) Items() []model.LineItem {
	out := make([]model.LineItem, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Bill) Item(productID string) (model.LineItem, bool) {
	if i := b.index(productID); i >= 0 {
		return b.items[i], true
	}
	return model.LineItem{}, false
}

func (b *Bill) IsEmpty() bool { return len(b.items) == 0 }

// Snapshot copies the bill for submission; later changes to b do not affect it.
func (b *Bill) Snapshot(at time.Time) model.BillSnapshot {
	return model.BillSnapshot{
		BillNumber:    b.number,
		CustomerName:  b.customerName,
		CustomerPhone: b.customerPhone,
		Items:         b.Items(),
		Total:         b.Total(),
		TakenAt:       at,
	}
}

func (b *Bill) index(productID string) int {
	for i := range b.items {
		if b.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
