package pos

import (
	"context"
	"testing"
	"time"

	"fz-pos-api/internal/notify"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	resolver *Resolver
	catalog  *fakeCatalog
	cart     *Cart
	notifier *notify.Notifier
	mock     *clock.Mock
	batches  []*BatchResult
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		catalog: newFakeCatalog(),
		cart:    NewCart(),
		mock:    clock.NewMock(),
	}
	f.notifier = notify.New(time.Minute, 20, f.mock)
	f.resolver = NewResolver(ResolverConfig{
		Catalog:     f.catalog,
		Cart:        f.cart,
		Notifier:    f.notifier,
		Clock:       f.mock,
		DedupWindow: time.Second,
		CodePrefix:  "FZ-",
		AfterBatch:  func(b *BatchResult) { f.batches = append(f.batches, b) },
	})
	return f
}

func (f *resolverFixture) messages() []string {
	var out []string
	for _, t := range f.notifier.Active() {
		out = append(out, t.Message)
	}
	return out
}

func TestResolver_DedupWindow(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("FZ-A", product(1, "FZ-A", 10, 0, 100))
	ctx := context.Background()

	res, err := f.resolver.Run(ctx, "FZ-A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, res.Results[0].Outcome)

	f.mock.Add(500 * time.Millisecond)
	res, err = f.resolver.Run(ctx, "FZ-A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Results[0].Outcome)
	assert.Len(t, f.catalog.seen(), 1)

	line, _ := f.cart.Line(1)
	assert.Equal(t, 1, line.Quantity)

	f.mock.Add(600 * time.Millisecond)
	res, err = f.resolver.Run(ctx, "FZ-A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, res.Results[0].Outcome)
	assert.Len(t, f.catalog.seen(), 2)

	line, _ = f.cart.Line(1)
	assert.Equal(t, 2, line.Quantity)
}

func TestResolver_DifferentCodeResetsDedup(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("FZ-A", product(1, "FZ-A", 10, 0, 100))
	f.catalog.add("FZ-B", product(2, "FZ-B", 10, 0, 100))
	ctx := context.Background()

	for _, code := range []string{"FZ-A", "FZ-B", "FZ-A"} {
		_, err := f.resolver.Run(ctx, code)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"FZ-A", "FZ-B", "FZ-A"}, f.catalog.seen())
	assert.Equal(t, "FZ-A", f.resolver.LastProcessed().Code)
}

func TestResolver_PrefersExactMatch(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("fz-b",
		product(1, "FZ-BIG", 5, 0, 100),
		product(2, "FZ-B", 5, 0, 200),
	)

	res, err := f.resolver.Run(context.Background(), "fz-b")
	require.NoError(t, err)

	require.NotNil(t, res.Results[0].Product)
	assert.Equal(t, int64(2), res.Results[0].Product.ID)
	assert.Contains(t, f.messages(), "Product FZ-B added to cart")
}

func TestResolver_FallsBackToFirstCandidate(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("hoodie",
		product(4, "FZ-H1", 5, 0, 100),
		product(5, "FZ-H2", 5, 0, 100),
	)

	res, err := f.resolver.Run(context.Background(), "hoodie")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Results[0].Product.ID)
}

func TestResolver_Unresolved(t *testing.T) {
	f := newResolverFixture(t)

	res, err := f.resolver.Run(context.Background(), "FZ-ABCDEFGHIJKLMNOPQRSTUV")
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnresolved, res.Results[0].Outcome)
	assert.Equal(t, []string{"Product not found: FZ-ABCDEFGHIJKLMNOPQ..."}, f.messages())
	assert.Equal(t, 0, f.cart.Len())
}

func TestResolver_LookupErrorDoesNotAbortBatch(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.failOn["FZ-A"] = true
	f.catalog.add("FZ-B", product(2, "FZ-B", 5, 0, 100))

	res, err := f.resolver.Run(context.Background(), "FZ-AFZ-B")
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, OutcomeFailed, res.Results[0].Outcome)
	assert.Equal(t, OutcomeAdded, res.Results[1].Outcome)
	assert.Equal(t, []string{"Failed to look up product", "Product FZ-B added to cart"}, f.messages())
}

func TestResolver_RejectedAddNotifies(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("FZ-A", product(1, "FZ-A", 1, 1, 100))

	res, err := f.resolver.Run(context.Background(), "FZ-A")
	require.NoError(t, err)

	assert.Equal(t, OutcomeRejected, res.Results[0].Outcome)
	assert.Equal(t, []string{"Product FZ-A is out of stock"}, f.messages())
}

func TestResolver_SequentialLookupsInScanOrder(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("FZ-A", product(1, "FZ-A", 5, 0, 100))
	f.catalog.add("FZ-B", product(2, "FZ-B", 5, 0, 100))

	_, err := f.resolver.Run(context.Background(), "FZ-AFZ-B")
	require.NoError(t, err)

	assert.Equal(t, []string{"FZ-A", "FZ-B"}, f.catalog.seen())
	require.Len(t, f.batches, 1)
	assert.Equal(t, "FZ-AFZ-B", f.batches[0].Raw)
}

func TestResolver_SingleBatchInFlight(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("FZ-A", product(1, "FZ-A", 5, 0, 100))
	f.catalog.gate = make(chan struct{})

	done, err := f.resolver.Go(context.Background(), "FZ-A")
	require.NoError(t, err)
	assert.True(t, f.resolver.Busy())

	_, err = f.resolver.Run(context.Background(), "FZ-B")
	assert.ErrorIs(t, err, ErrBatchInFlight)
	_, err = f.resolver.Go(context.Background(), "FZ-B")
	assert.ErrorIs(t, err, ErrBatchInFlight)

	close(f.catalog.gate)
	res := <-done
	require.NotNil(t, res)
	_, open := <-done
	assert.False(t, open)

	assert.False(t, f.resolver.Busy())
	assert.Equal(t, []string{"FZ-A"}, f.catalog.seen())
}

func TestResolver_StoppedOwnerSkipsRemainingCodes(t *testing.T) {
	f := newResolverFixture(t)
	f.catalog.add("FZ-A", product(1, "FZ-A", 5, 0, 100))
	f.catalog.add("FZ-B", product(2, "FZ-B", 5, 0, 100))

	ctx, cancel := context.WithCancel(context.Background())
	f.resolver.cfg.OnResult = func(CodeResult) { cancel() }

	res, err := f.resolver.Run(ctx, "FZ-AFZ-B")
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	assert.Equal(t, OutcomeAdded, res.Results[0].Outcome)
	assert.Equal(t, []string{"FZ-A"}, f.catalog.seen())
	assert.Equal(t, 1, f.cart.Len())
}
