package pos

import (
	"context"
	"sync"
	"testing"
	"time"

	"fz-pos-api/internal/model"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pollInterval = 3 * time.Second

type pollerFixture struct {
	poller *PaymentPoller
	orders *fakeOrders
	mock   *clock.Mock

	mu      sync.Mutex
	settled []model.Order
	failed  []model.Order
}

func newPollerFixture(t *testing.T) *pollerFixture {
	t.Helper()
	f := &pollerFixture{orders: &fakeOrders{}, mock: clock.NewMock()}
	f.poller = NewPaymentPoller(context.Background(), PollerConfig{
		Orders:   f.orders,
		Clock:    f.mock,
		Interval: pollInterval,
		OnSettled: func(o *model.Order) {
			f.mu.Lock()
			f.settled = append(f.settled, *o)
			f.mu.Unlock()
		},
		OnFailed: func(o *model.Order) {
			f.mu.Lock()
			f.failed = append(f.failed, *o)
			f.mu.Unlock()
		},
	})
	t.Cleanup(f.poller.Close)
	return f
}

func (f *pollerFixture) counts() (settled, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settled), len(f.failed)
}

func (f *pollerFixture) tick(t *testing.T, wantGets int) {
	t.Helper()
	f.mock.Add(pollInterval)
	require.Eventually(t, func() bool { return f.orders.getCount() == wantGets }, time.Second, 5*time.Millisecond)
}

func pendingOrder() model.Order {
	return model.Order{ID: 11, OrderNumber: "POS-0011", Status: "pending", PaymentStatus: "pending", PaymentURL: "https://pay.example/11"}
}

func TestPoller_StopsAfterSettlement(t *testing.T) {
	f := newPollerFixture(t)
	f.orders.setStatuses(
		model.Order{PaymentStatus: "pending"},
		model.Order{Status: "completed", PaymentStatus: "paid"},
	)

	f.poller.Start(pendingOrder())
	state, _ := f.poller.State()
	assert.Equal(t, PollPolling, state)

	f.tick(t, 1)
	f.tick(t, 2)

	require.Eventually(t, func() bool {
		s, _ := f.counts()
		return s == 1
	}, time.Second, 5*time.Millisecond)

	state, order := f.poller.State()
	assert.Equal(t, PollIdle, state)
	assert.Equal(t, "paid", order.PaymentStatus)

	f.mock.Add(3 * pollInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, f.orders.getCount())

	settled, failed := f.counts()
	assert.Equal(t, 1, settled)
	assert.Zero(t, failed)
}

func TestPoller_TerminalFailure(t *testing.T) {
	f := newPollerFixture(t)
	f.orders.setStatuses(model.Order{PaymentStatus: "expired"})

	f.poller.Start(pendingOrder())
	f.tick(t, 1)

	require.Eventually(t, func() bool {
		_, failed := f.counts()
		return failed == 1
	}, time.Second, 5*time.Millisecond)

	state, _ := f.poller.State()
	assert.Equal(t, PollIdle, state)
}

func TestPoller_CheckErrorKeepsPolling(t *testing.T) {
	f := newPollerFixture(t)
	f.orders.statusErr = errBackendDown

	f.poller.Start(pendingOrder())
	f.tick(t, 1)
	f.tick(t, 2)

	state, _ := f.poller.State()
	assert.Equal(t, PollPolling, state)
}

func TestPoller_CancelStopsTicks(t *testing.T) {
	f := newPollerFixture(t)

	f.poller.Start(pendingOrder())
	assert.True(t, f.poller.Cancel())
	assert.False(t, f.poller.Cancel())

	f.mock.Add(2 * pollInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.orders.getCount())

	_, err := f.poller.CheckNow()
	assert.ErrorIs(t, err, ErrNoPendingPayment)
}

func TestPoller_CheckNow(t *testing.T) {
	f := newPollerFixture(t)
	f.orders.setStatuses(model.Order{PaymentStatus: "settlement"})

	f.poller.Start(pendingOrder())
	order, err := f.poller.CheckNow()
	require.NoError(t, err)
	assert.Equal(t, "settlement", order.PaymentStatus)

	settled, _ := f.counts()
	assert.Equal(t, 1, settled)

	_, err = f.poller.CheckNow()
	assert.ErrorIs(t, err, ErrNoPendingPayment)
}

func TestPoller_CheckNowIsDebounced(t *testing.T) {
	f := newPollerFixture(t)
	f.orders.block = make(chan struct{})

	f.poller.Start(pendingOrder())

	done := make(chan error, 1)
	go func() {
		_, err := f.poller.CheckNow()
		done <- err
	}()
	require.Eventually(t, func() bool { return f.orders.getCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.poller.CheckNow()
	assert.ErrorIs(t, err, ErrCheckInFlight)

	close(f.orders.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.orders.getCount())
}

func TestPoller_RestartReplacesOrder(t *testing.T) {
	f := newPollerFixture(t)

	f.poller.Start(pendingOrder())
	next := pendingOrder()
	next.ID, next.OrderNumber = 12, "POS-0012"
	f.poller.Start(next)

	_, order := f.poller.State()
	assert.Equal(t, int64(12), order.ID)

	f.tick(t, 1)
}
