// Package scanner separates keyboard-wedge barcode/QR scanner input from
// human typing on a shared keystroke stream and splits scanned bursts into
// product codes.
package scanner

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
)

// Named keys the classifier reacts to.
const (
	KeyEnter   = "Enter"
	KeyTab     = "Tab"
	KeyShift   = "Shift"
	KeyControl = "Control"
	KeyAlt     = "Alt"
	KeyMeta    = "Meta"
)

// Handler receives a complete raw code. fromSearch is true when the code came
// from the designated search field, which the caller should then clear.
type Handler func(raw string, fromSearch bool)

// Options tunes the classifier heuristics.
type Options struct {
	// ScanThreshold is the inter-key gap below which keystrokes are
	// considered scanner-speed.
	ScanThreshold time.Duration
	// IdleTimeout fires the auto-trigger when no Enter arrives.
	IdleTimeout time.Duration
	// MinExecLength is the minimum code length accepted on Enter/Tab.
	MinExecLength int
	// MinAutoLength is the minimum buffer length for the idle trigger.
	MinAutoLength int
	// MinBareLength is the minimum length for an idle-triggered code that
	// lacks CodePrefix and was typed outside any text input.
	MinBareLength int
	CodePrefix    string
	Clock         clock.Clock
}

// DefaultOptions returns the tuned production values.
func DefaultOptions() Options {
	return Options{
		ScanThreshold: 100 * time.Millisecond,
		IdleTimeout:   150 * time.Millisecond,
		MinExecLength: 2,
		MinAutoLength: 3,
		MinBareLength: 4,
		CodePrefix:    "FZ-",
		Clock:         clock.New(),
	}
}

// Classifier owns the scan burst buffer for one POS screen. It is safe for
// use by the key stream and its own idle timer concurrently.
type Classifier struct {
	opts Options

	mu          sync.Mutex
	buf         []rune
	lastKeyTime time.Time
	lastTarget  Target
	idle        *clock.Timer
	idleGen     uint64
	handler     Handler
	closed      bool
}

// NewClassifier creates a classifier. Zero option fields take defaults.
func NewClassifier(opts Options) *Classifier {
	def := DefaultOptions()
	if opts.ScanThreshold <= 0 {
		opts.ScanThreshold = def.ScanThreshold
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = def.IdleTimeout
	}
	if opts.MinExecLength <= 0 {
		opts.MinExecLength = def.MinExecLength
	}
	if opts.MinAutoLength <= 0 {
		opts.MinAutoLength = def.MinAutoLength
	}
	if opts.MinBareLength <= 0 {
		opts.MinBareLength = def.MinBareLength
	}
	if opts.CodePrefix == "" {
		opts.CodePrefix = def.CodePrefix
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Classifier{opts: opts}
}

// SetHandler swaps the code handler. The classifier stays subscribed to the
// key stream; only the target of dispatch changes.
func (c *Classifier) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Buffer returns the current burst contents.
func (c *Classifier) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// KeyDown feeds one keystroke to the classifier.
func (c *Classifier) KeyDown(ev KeyEvent) Outcome {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Outcome{}
	}
	if ev.At.IsZero() {
		ev.At = c.opts.Clock.Now()
	}

	switch {
	case isModifier(ev.Key):
		c.mu.Unlock()
		return Outcome{}

	case ev.Key == KeyEnter || ev.Key == KeyTab:
		code, fromSearch := c.executionCode(ev)
		c.resetLocked()
		h := c.handler
		c.mu.Unlock()

		if code == "" {
			return Outcome{}
		}
		if h != nil {
			h(code, fromSearch)
		}
		return Outcome{PreventDefault: true, ClearField: fromSearch, Code: code}

	case isPrintable(ev.Key):
		r, _ := utf8.DecodeRuneInString(ev.Key)
		if c.lastKeyTime.IsZero() || ev.At.Sub(c.lastKeyTime) < c.opts.ScanThreshold || !ev.Target.IsTextInput() {
			c.buf = append(c.buf, r)
		} else {
			c.buf = append(c.buf[:0], r)
		}
		c.lastKeyTime = ev.At
		c.lastTarget = ev.Target
		c.armIdleLocked()
		c.mu.Unlock()
		return Outcome{}

	default:
		c.resetLocked()
		c.mu.Unlock()
		return Outcome{}
	}
}

// executionCode picks the code for an Enter/Tab: the search field value
// first, then the burst buffer.
func (c *Classifier) executionCode(ev KeyEvent) (string, bool) {
	if ev.Target == TargetSearch {
		if v := strings.TrimSpace(ev.FieldValue); utf8.RuneCountInString(v) >= c.opts.MinExecLength {
			return v, true
		}
	}
	if len(c.buf) >= c.opts.MinExecLength {
		return string(c.buf), false
	}
	return "", false
}

func (c *Classifier) armIdleLocked() {
	if c.idle != nil {
		c.idle.Stop()
	}
	c.idleGen++
	gen := c.idleGen
	c.idle = c.opts.Clock.AfterFunc(c.opts.IdleTimeout, func() { c.onIdle(gen) })
}

func (c *Classifier) onIdle(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.idleGen {
		c.mu.Unlock()
		return
	}
	code := string(c.buf)
	n := len(c.buf)
	fromSearch := c.lastTarget == TargetSearch
	ok := n >= c.opts.MinAutoLength &&
		(strings.Contains(code, c.opts.CodePrefix) ||
			(!c.lastTarget.IsTextInput() && n >= c.opts.MinBareLength))
	c.resetLocked()
	h := c.handler
	c.mu.Unlock()

	if ok && h != nil {
		h(code, fromSearch)
	}
}

// resetLocked discards the burst and any pending idle trigger.
func (c *Classifier) resetLocked() {
	c.buf = c.buf[:0]
	if c.idle != nil {
		c.idle.Stop()
		c.idle = nil
	}
	c.idleGen++
}

// Close cancels the idle timer. Later keystrokes are ignored.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.closed = true
}

func isModifier(key string) bool {
	switch key {
	case KeyShift, KeyControl, KeyAlt, KeyMeta:
		return true
	}
	return false
}

func isPrintable(key string) bool {
	return utf8.RuneCountInString(key) == 1
}
