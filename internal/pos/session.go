// Package pos implements the point-of-sale screen core: scan resolution,
// the cart with stock ceilings, checkout, and payment confirmation polling.
package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"
	"fz-pos-api/internal/notify"
	"fz-pos-api/internal/scanner"

	"github.com/benbjohnson/clock"
)

// OrderService creates orders and reads their status.
type OrderService interface {
	OrderFetcher
	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.Order, error)
}

// AuditSink records POS events. Implementations must not block for long.
type AuditSink interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}

// Options holds the POS policy values.
type Options struct {
	Scanner      scanner.Options
	DedupWindow  time.Duration
	PollInterval time.Duration
	ToastTTL     time.Duration
	ToastLimit   int
}

// DefaultOptions returns the production policy.
func DefaultOptions() Options {
	return Options{
		Scanner:      scanner.DefaultOptions(),
		DedupWindow:  time.Second,
		PollInterval: 3 * time.Second,
		ToastTTL:     3 * time.Second,
		ToastLimit:   5,
	}
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Catalog ProductSearcher
	Orders  OrderService
	Audit   AuditSink
	Clock   clock.Clock
	Options Options
}

// CheckoutRequest is the operator-entered part of an order.
type CheckoutRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	PaymentMethod string `json:"payment_method"`
	POPaymentType string `json:"po_payment_type"`
	Notes         string `json:"notes"`
}

// PaymentView is the payment part of a snapshot.
type PaymentView struct {
	State PollState    `json:"state"`
	Order *model.Order `json:"order,omitempty"`
}

// Snapshot is the renderable state of a session.
type Snapshot struct {
	ID       string                 `json:"id"`
	Lines    []model.CartLine       `json:"lines"`
	Total    float64                `json:"total"`
	Search   string                 `json:"search"`
	Results  []model.CatalogProduct `json:"results"`
	Scanning bool                   `json:"scanning"`
	Toasts   []notify.Toast         `json:"toasts"`
	Payment  PaymentView            `json:"payment"`
}

// Session is one mounted POS screen.
type Session struct {
	id    string
	deps  Deps
	clock clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	classifier *scanner.Classifier
	resolver   *Resolver
	cart       *Cart
	poller     *PaymentPoller
	notifier   *notify.Notifier

	mu         sync.Mutex
	search     string
	results    []model.CatalogProduct
	lastActive time.Time
	closed     bool
}

// NewSession mounts a session. Close must be called to tear it down.
func NewSession(id string, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	opts := deps.Options
	opts.Scanner.Clock = deps.Clock

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		deps:       deps,
		clock:      deps.Clock,
		ctx:        ctx,
		cancel:     cancel,
		cart:       NewCart(),
		notifier:   notify.New(opts.ToastTTL, opts.ToastLimit, deps.Clock),
		lastActive: deps.Clock.Now(),
	}

	s.classifier = scanner.NewClassifier(opts.Scanner)
	s.resolver = NewResolver(ResolverConfig{
		Catalog:     deps.Catalog,
		Cart:        s.cart,
		Notifier:    s.notifier,
		Clock:       deps.Clock,
		DedupWindow: opts.DedupWindow,
		CodePrefix:  opts.Scanner.CodePrefix,
		AfterBatch:  s.afterBatch,
		OnResult:    s.auditResult,
		Alive:       func() bool { return !s.isClosed() },
	})
	s.poller = NewPaymentPoller(ctx, PollerConfig{
		Orders:    deps.Orders,
		Clock:     deps.Clock,
		Interval:  opts.PollInterval,
		OnSettled: s.onSettled,
		OnFailed:  s.onPaymentFailed,
	})
	s.classifier.SetHandler(s.handleCode)

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Notifier returns the session's toast notifier.
func (s *Session) Notifier() *notify.Notifier { return s.notifier }

// Cart returns the session's cart.
func (s *Session) Cart() *Cart { return s.cart }

// HandleKey feeds one keystroke from the screen.
func (s *Session) HandleKey(ev scanner.KeyEvent) scanner.Outcome {
	s.touch()
	return s.classifier.KeyDown(ev)
}

// handleCode receives complete codes from the classifier.
func (s *Session) handleCode(raw string, fromSearch bool) {
	if s.isClosed() {
		return
	}
	if fromSearch {
		s.mu.Lock()
		s.search = ""
		s.mu.Unlock()
	}
	if _, err := s.resolver.Go(s.ctx, raw); err != nil {
		logger.Log.Debugf("[Session %s] Ignoring scan %q: %v", s.id, raw, err)
	}
}

// Scan resolves an already-decoded code, e.g. from the camera QR reader,
// and waits for the batch to finish.
func (s *Session) Scan(ctx context.Context, raw string) (*BatchResult, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	s.touch()

	done, err := s.resolver.Go(s.ctx, raw)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Search queries the catalog for the search grid.
func (s *Session) Search(ctx context.Context, query string) ([]model.CatalogProduct, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	s.touch()

	results, err := s.deps.Catalog.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.search = query
	s.results = results
	s.mu.Unlock()
	return results, nil
}

// AddProduct adds a product picked from the current search results.
func (s *Session) AddProduct(productID int64) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.touch()

	s.mu.Lock()
	var product *model.CatalogProduct
	for i := range s.results {
		if s.results[i].ID == productID {
			p := s.results[i]
			product = &p
			break
		}
	}
	s.mu.Unlock()

	if product == nil {
		return ErrProductNotListed
	}
	if err := s.cart.Add(*product); err != nil {
		s.notifyCartError(err)
		return err
	}
	s.notifier.Success(fmt.Sprintf("%s added to cart", product.Name))
	return nil
}

// UpdateQuantity changes a line by delta (the +/- buttons).
func (s *Session) UpdateQuantity(productID int64, delta int) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.touch()

	if err := s.cart.UpdateQuantity(productID, delta); err != nil {
		s.notifyCartError(err)
		return err
	}
	return nil
}

// Remove deletes a cart line.
func (s *Session) Remove(productID int64) bool {
	s.touch()
	return s.cart.Remove(productID)
}

// ClearCart empties the cart.
func (s *Session) ClearCart() {
	s.touch()
	s.cart.Clear()
}

// Checkout turns the cart into an order. Orders paid on the spot clear the
// cart; orders with a payment URL start the payment poller and keep the cart
// until the payment settles. On error the cart is untouched.
func (s *Session) Checkout(ctx context.Context, req CheckoutRequest) (*model.Order, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	s.touch()

	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	orderReq := model.OrderRequest{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         make([]model.OrderItem, 0, len(lines)),
		PaymentMethod: req.PaymentMethod,
		POPaymentType: req.POPaymentType,
		Notes:         req.Notes,
	}
	for _, l := range lines {
		orderReq.Items = append(orderReq.Items, model.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	order, err := s.deps.Orders.CreateOrder(ctx, orderReq)
	if err != nil {
		s.record(model.AuditEntry{Action: model.AuditOrderFailed, Detail: err.Error()})
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.record(model.AuditEntry{Action: model.AuditOrderCreated, OrderID: order.ID, Detail: order.OrderNumber})

	if !order.NeedsConfirmation() {
		s.cart.Clear()
		s.notifier.Success(fmt.Sprintf("Order %s completed", order.OrderNumber))
		return order, nil
	}

	s.poller.Start(*order)
	s.notifier.Info(fmt.Sprintf("Waiting for payment of order %s", order.OrderNumber))
	return order, nil
}

// CheckPayment runs a manual payment status check.
func (s *Session) CheckPayment() (*model.Order, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	s.touch()

	order, err := s.poller.CheckNow()
	if err != nil {
		if !errors.Is(err, ErrCheckInFlight) && !errors.Is(err, ErrNoPendingPayment) {
			s.notifier.Error("Failed to check payment status")
		}
		return nil, err
	}
	return order, nil
}

// CancelPayment stops waiting for the pending payment. The cart is kept so
// the operator can retry.
func (s *Session) CancelPayment() bool {
	s.touch()
	return s.poller.Cancel()
}

// PaymentState returns the poller state and watched order.
func (s *Session) PaymentState() (PollState, *model.Order) {
	return s.poller.State()
}

// Snapshot returns the renderable state of the session.
func (s *Session) Snapshot() Snapshot {
	state, order := s.poller.State()

	s.mu.Lock()
	search := s.search
	results := make([]model.CatalogProduct, len(s.results))
	copy(results, s.results)
	s.mu.Unlock()

	return Snapshot{
		ID:       s.id,
		Lines:    s.cart.Lines(),
		Total:    s.cart.Total(),
		Search:   search,
		Results:  results,
		Scanning: s.resolver.Busy(),
		Toasts:   s.notifier.Active(),
		Payment:  PaymentView{State: state, Order: order},
	}
}

// LastActive returns when the session last saw operator activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close tears the session down. Outstanding lookups finish but no longer
// touch the cart, toasts or audit trail.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.classifier.Close()
	s.poller.Close()
	s.cancel()
}

func (s *Session) afterBatch(*BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.search = ""
	s.results = nil
}

func (s *Session) onSettled(order *model.Order) {
	if s.isClosed() {
		return
	}
	s.cart.Clear()
	s.notifier.Success(fmt.Sprintf("Payment received for order %s", order.OrderNumber))
	s.record(model.AuditEntry{Action: model.AuditPaymentSettled, OrderID: order.ID, Detail: order.PaymentStatus})
}

func (s *Session) onPaymentFailed(order *model.Order) {
	if s.isClosed() {
		return
	}
	s.notifier.Error(fmt.Sprintf("Payment for order %s %s", order.OrderNumber, order.PaymentStatus))
	s.record(model.AuditEntry{Action: model.AuditPaymentFailed, OrderID: order.ID, Detail: order.PaymentStatus})
}

func (s *Session) auditResult(res CodeResult) {
	if s.isClosed() {
		return
	}
	entry := model.AuditEntry{Code: res.Code, Detail: res.Error}
	if res.Product != nil {
		entry.ProductID = res.Product.ID
	}
	switch res.Outcome {
	case OutcomeAdded:
		entry.Action = model.AuditScanResolved
	case OutcomeRejected:
		entry.Action = model.AuditCartRejected
	case OutcomeUnresolved:
		entry.Action = model.AuditScanUnresolved
	case OutcomeFailed:
		entry.Action = model.AuditScanFailed
	default:
		return
	}
	s.record(entry)
}

func (s *Session) record(entry model.AuditEntry) {
	if s.deps.Audit == nil || s.isClosed() {
		return
	}
	entry.SessionID = s.id
	entry.CreatedAt = s.clock.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Audit.Record(ctx, entry); err != nil {
		logger.Log.Warnf("[Session %s] Failed to record %s: %v", s.id, entry.Action, err)
	}
}

func (s *Session) notifyCartError(err error) {
	var ce *CartError
	if errors.As(err, &ce) && ce.Code != CodeNotInCart {
		s.notifier.Error(ce.Error())
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.clock.Now()
	s.mu.Unlock()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
