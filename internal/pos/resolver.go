package pos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fz-pos-api/internal/logger"
	"fz-pos-api/internal/model"
	"fz-pos-api/internal/notify"
	"fz-pos-api/internal/scanner"

	"github.com/benbjohnson/clock"
)

const displayCodeLength = 20

// ProductSearcher queries the product catalog.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query string) ([]model.CatalogProduct, error)
}

// DedupEntry is the most recently processed code.
type DedupEntry struct {
	Code        string
	ProcessedAt time.Time
}

// CodeOutcome is what happened to one segmented code.
type CodeOutcome string

const (
	OutcomeAdded      CodeOutcome = "added"
	OutcomeRejected   CodeOutcome = "rejected"
	OutcomeDuplicate  CodeOutcome = "duplicate"
	OutcomeUnresolved CodeOutcome = "unresolved"
	OutcomeFailed     CodeOutcome = "failed"
)

// CodeResult is the resolution of one code in a batch.
type CodeResult struct {
	Code    string                `json:"code"`
	Outcome CodeOutcome           `json:"outcome"`
	Product *model.CatalogProduct `json:"product,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// BatchResult is the resolution of one scan.
type BatchResult struct {
	Raw     string       `json:"raw"`
	Results []CodeResult `json:"results"`
}

// ResolverConfig wires a Resolver.
type ResolverConfig struct {
	Catalog     ProductSearcher
	Cart        *Cart
	Notifier    *notify.Notifier
	Clock       clock.Clock
	DedupWindow time.Duration
	CodePrefix  string
	// AfterBatch runs once a batch finished, before the guard is released.
	AfterBatch func(*BatchResult)
	// OnResult observes every code result, e.g. for the audit trail.
	OnResult func(CodeResult)
	// Alive reports whether results may still change the cart. Nil means
	// always.
	Alive func() bool
}

// Resolver turns raw scans into cart additions. Only one batch runs at a
// time; codes within a batch are looked up one after another.
type Resolver struct {
	cfg  ResolverConfig
	busy atomic.Bool

	mu   sync.Mutex
	last DedupEntry
}

// NewResolver creates a resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Second
	}
	if cfg.CodePrefix == "" {
		cfg.CodePrefix = "FZ-"
	}
	return &Resolver{cfg: cfg}
}

// Busy reports whether a batch is in flight.
func (r *Resolver) Busy() bool {
	return r.busy.Load()
}

// Run resolves raw synchronously. It returns ErrBatchInFlight when another
// batch holds the guard.
func (r *Resolver) Run(ctx context.Context, raw string) (*BatchResult, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchInFlight
	}
	defer r.busy.Store(false)
	return r.process(ctx, raw), nil
}

// Go takes the guard immediately and resolves raw in the background. The
// returned channel yields the result once.
func (r *Resolver) Go(ctx context.Context, raw string) (<-chan *BatchResult, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBatchInFlight
	}
	done := make(chan *BatchResult, 1)
	go func() {
		defer close(done)
		defer r.busy.Store(false)
		done <- r.process(ctx, raw)
	}()
	return done, nil
}

func (r *Resolver) process(ctx context.Context, raw string) *BatchResult {
	codes := scanner.Segment(raw, r.cfg.CodePrefix)
	batch := &BatchResult{Raw: raw, Results: make([]CodeResult, 0, len(codes))}

	for _, code := range codes {
		if !r.alive(ctx) {
			break
		}
		res := r.resolve(ctx, code)
		batch.Results = append(batch.Results, res)
		if r.cfg.OnResult != nil {
			r.cfg.OnResult(res)
		}
	}

	if r.cfg.AfterBatch != nil {
		r.cfg.AfterBatch(batch)
	}
	return batch
}

func (r *Resolver) resolve(ctx context.Context, code string) CodeResult {
	if r.isDuplicate(code) {
		logger.Log.Debugf("[Resolver] Skipping repeat scan %q", code)
		return CodeResult{Code: code, Outcome: OutcomeDuplicate}
	}

	candidates, err := r.cfg.Catalog.SearchProducts(ctx, code)
	if !r.alive(ctx) {
		logger.Log.Debugf("[Resolver] Dropping result for %q, owner stopped", code)
		return CodeResult{Code: code, Outcome: OutcomeFailed, Error: ErrSessionClosed.Error()}
	}
	if err != nil {
		logger.Log.Warnf("[Resolver] Lookup for %q failed: %v", code, err)
		r.notifyError("Failed to look up product")
		return CodeResult{Code: code, Outcome: OutcomeFailed, Error: err.Error()}
	}

	product, ok := pickCandidate(code, candidates)
	if !ok {
		r.notifyError(fmt.Sprintf("Product not found: %s", truncate(code, displayCodeLength)))
		return CodeResult{Code: code, Outcome: OutcomeUnresolved}
	}

	if err := r.cfg.Cart.Add(product); err != nil {
		var ce *CartError
		if errors.As(err, &ce) {
			r.notifyError(ce.Error())
		}
		return CodeResult{Code: code, Outcome: OutcomeRejected, Product: &product, Error: err.Error()}
	}

	if r.cfg.Notifier != nil {
		r.cfg.Notifier.Success(fmt.Sprintf("%s added to cart", product.Name))
	}
	return CodeResult{Code: code, Outcome: OutcomeAdded, Product: &product}
}

func (r *Resolver) alive(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return r.cfg.Alive == nil || r.cfg.Alive()
}

// isDuplicate checks code against the retained entry and records it when it
// is not a repeat.
func (r *Resolver) isDuplicate(code string) bool {
	now := r.cfg.Clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last.Code == code && now.Sub(r.last.ProcessedAt) < r.cfg.DedupWindow {
		return true
	}
	r.last = DedupEntry{Code: code, ProcessedAt: now}
	return false
}

// LastProcessed returns the retained dedup entry.
func (r *Resolver) LastProcessed() DedupEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Resolver) notifyError(msg string) {
	if r.cfg.Notifier != nil {
		r.cfg.Notifier.Error(msg)
	}
}

// pickCandidate prefers an exact SKU or QR code match and falls back to the
// first candidate.
func pickCandidate(code string, candidates []model.CatalogProduct) (model.CatalogProduct, bool) {
	if len(candidates) == 0 {
		return model.CatalogProduct{}, false
	}
	for _, c := range candidates {
		if strings.EqualFold(c.SKU, code) || strings.EqualFold(c.QRCode, code) {
			return c, true
		}
	}
	return candidates[0], true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
