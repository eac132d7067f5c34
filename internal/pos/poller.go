package pos

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"

	"github.com/benbjohnson/clock"
)

// OrderFetcher reads the current status of an order.
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
}

// PollState is the poller's lifecycle state.
type PollState string

const (
	PollIdle    PollState = "idle"
	PollPolling PollState = "polling"
)

// PollerConfig wires a PaymentPoller.
type PollerConfig struct {
	Orders   OrderFetcher
	Clock    clock.Clock
	Interval time.Duration
	// OnSettled runs once when the order reports a paid outcome.
	OnSettled func(*model.Order)
	// OnFailed runs once when the payment reports a terminal failure.
	OnFailed func(*model.Order)
}

// PaymentPoller watches one pending order at a time until its payment
// settles, fails, or the operator cancels.
type PaymentPoller struct {
	cfg      PollerConfig
	ctx      context.Context
	checking atomic.Bool

	mu     sync.Mutex
	state  PollState
	order  *model.Order
	ticker *clock.Ticker
	stop   chan struct{}
	gen    uint64
}

// NewPaymentPoller creates an idle poller. ctx bounds every status check.
func NewPaymentPoller(ctx context.Context, cfg PollerConfig) *PaymentPoller {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &PaymentPoller{cfg: cfg, ctx: ctx, state: PollIdle}
}

// State returns the lifecycle state and the watched order, if any.
func (p *PaymentPoller) State() (PollState, *model.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.order == nil {
		return p.state, nil
	}
	o := *p.order
	return p.state, &o
}

// Start begins polling order. A previous poll is stopped first.
func (p *PaymentPoller) Start(order model.Order) {
	p.mu.Lock()
	p.stopLocked()
	p.gen++
	gen := p.gen
	p.state = PollPolling
	p.order = &order
	p.ticker = p.cfg.Clock.Ticker(p.cfg.Interval)
	p.stop = make(chan struct{})
	ticks, stop := p.ticker.C, p.stop
	p.mu.Unlock()

	logger.Log.Infof("[PaymentPoller] Watching order %s every %v", order.OrderNumber, p.cfg.Interval)
	go p.run(gen, ticks, stop)
}

func (p *PaymentPoller) run(gen uint64, ticks <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-p.ctx.Done():
			return
		case <-ticks:
			if !p.isCurrent(gen) {
				return
			}
			if !p.checking.CompareAndSwap(false, true) {
				continue
			}
			_, err := p.check(gen)
			p.checking.Store(false)
			if err != nil {
				logger.Log.Warnf("[PaymentPoller] Status check failed, retrying next tick: %v", err)
			}
		}
	}
}

// CheckNow queries the order status outside the timer. It returns
// ErrCheckInFlight while another check runs.
func (p *PaymentPoller) CheckNow() (*model.Order, error) {
	p.mu.Lock()
	if p.state != PollPolling {
		p.mu.Unlock()
		return nil, ErrNoPendingPayment
	}
	gen := p.gen
	p.mu.Unlock()

	if !p.checking.CompareAndSwap(false, true) {
		return nil, ErrCheckInFlight
	}
	defer p.checking.Store(false)
	return p.check(gen)
}

func (p *PaymentPoller) check(gen uint64) (*model.Order, error) {
	p.mu.Lock()
	if p.gen != gen || p.order == nil {
		p.mu.Unlock()
		return nil, ErrNoPendingPayment
	}
	orderID := p.order.ID
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Interval)
	defer cancel()

	status, err := p.cfg.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.gen != gen || p.state != PollPolling {
		p.mu.Unlock()
		return status, nil
	}
	p.order.Status = status.Status
	p.order.PaymentStatus = status.PaymentStatus

	settled, failed := status.IsSettled(), status.IsFailed()
	if !settled && !failed {
		p.mu.Unlock()
		return status, nil
	}
	onDone := p.cfg.OnFailed
	if settled {
		onDone = p.cfg.OnSettled
	}
	final := *p.order
	p.stopLocked()
	p.mu.Unlock()

	logger.Log.Infof("[PaymentPoller] Order %s finished with payment status %q", final.OrderNumber, final.PaymentStatus)
	if onDone != nil {
		onDone(&final)
	}
	return &final, nil
}

// Cancel stops polling without touching the cart.
func (p *PaymentPoller) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PollPolling {
		return false
	}
	p.stopLocked()
	return true
}

// Close stops any running poll.
func (p *PaymentPoller) Close() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

func (p *PaymentPoller) isCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen && p.state == PollPolling
}

// stopLocked clears the ticker and returns to idle.
func (p *PaymentPoller) stopLocked() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.state = PollIdle
	p.gen++
}
