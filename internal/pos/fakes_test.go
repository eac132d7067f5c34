package pos

import (
	"context"
	"errors"
	"sync"

	"fz-pos-api/internal/model"
)

var errBackendDown = errors.New("backend down")

// fakeCatalog answers searches from a fixed table keyed by query.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string][]model.CatalogProduct
	failOn   map[string]bool
	queries  []string
	// gate, when set, blocks every search until it is closed.
	gate chan struct{}
	// deaf makes gated searches ignore context cancellation.
	deaf bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: make(map[string][]model.CatalogProduct),
		failOn:   make(map[string]bool),
	}
}

func (f *fakeCatalog) add(query string, products ...model.CatalogProduct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[query] = append(f.products[query], products...)
}

func (f *fakeCatalog) SearchProducts(ctx context.Context, query string) ([]model.CatalogProduct, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate := f.gate
	deaf := f.deaf
	fail := f.failOn[query]
	res := append([]model.CatalogProduct(nil), f.products[query]...)
	f.mu.Unlock()

	if gate != nil && deaf {
		<-gate
	} else if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errBackendDown
	}
	return res, nil
}

func (f *fakeCatalog) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fakeOrders creates orders with a canned response and serves statuses from
// a queue; the last status repeats once the queue is drained.
type fakeOrders struct {
	mu        sync.Mutex
	created   []model.OrderRequest
	response  model.Order
	createErr error
	statuses  []model.Order
	statusErr error
	gets      int
	// block, when set, holds every GetOrder until it is closed.
	block chan struct{}
}

func (f *fakeOrders) CreateOrder(_ context.Context, req model.OrderRequest) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	o := f.response
	return &o, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	f.mu.Lock()
	f.gets++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if len(f.statuses) == 0 {
		return &model.Order{ID: orderID, PaymentStatus: "pending"}, nil
	}
	o := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	o.ID = orderID
	return &o, nil
}

func (f *fakeOrders) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeOrders) setStatuses(statuses ...model.Order) {
	f.mu.Lock()
	f.statuses = statuses
	f.mu.Unlock()
}

// memAudit keeps recorded entries in memory.
type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memAudit) Record(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memAudit) actions() []model.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuditAction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

func product(id int64, sku string, stock, reserved int, price float64) model.CatalogProduct {
	return model.CatalogProduct{
		ID:          id,
		SKU:         sku,
		QRCode:      sku,
		Name:        "Product " + sku,
		Price:       price,
		ProductType: model.ProductReady,
		Stock:       stock,
		ReservedQty: reserved,
	}
}
