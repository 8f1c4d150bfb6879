package replenish

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ahinestrog/frontcounter/internal/model"
)

type fakeCatalog map[string]model.CatalogSnapshot

func (c fakeCatalog) Lookup(_ context.Context, id string) (model.CatalogSnapshot, error) {
	s, ok := c[id]
	if !ok {
		return model.CatalogSnapshot{}, fmt.Errorf("%s: %w", id, model.ErrNotFound)
	}
	return s, nil
}

type fakeStore struct {
	mu    sync.Mutex
	calls []model.StockIncrementRequest
	stock map[string]int64
	err   error
}

func (s *fakeStore) IncrementStock(_ context.Context, req model.StockIncrementRequest) (model.StockConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return model.StockConfirmation{}, s.err
	}
	s.stock[req.ProductID] += req.QuantityToAdd
	return model.StockConfirmation{ProductID: req.ProductID, NewStock: s.stock[req.ProductID]}, nil
}

type recordingInvalidator struct{ ids []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) { r.ids = append(r.ids, ids...) }

func product(id string, stock int64) model.CatalogSnapshot {
	return model.CatalogSnapshot{ProductID: id, DisplayName: "Item " + id, UnitPrice: decimal.NewFromInt(1), AvailableStock: stock}
}

func newTestFlow() (*Flow, *fakeStore, *recordingInvalidator) {
	cat := fakeCatalog{"P1": product("P1", 10), "P2": product("P2", 0)}
	st := &fakeStore{stock: map[string]int64{"P1": 10, "P2": 0}}
	inv := &recordingInvalidator{}
	return New(cat, st, Config{}, WithInvalidator(inv)), st, inv
}

func scanEvent(raw string) model.ScanEvent { return model.ScanEvent{RawPayload: raw} }
