// Package notify keeps the short-lived toast notifications shown on a POS
// screen.
package notify

import (
	"sync"
	"time"

	"fz-pos-api/pkg/uid"

	"github.com/benbjohnson/clock"
)

// Level is the toast severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Toast is one transient notification.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

const subscriberBuffer = 16

// Notifier holds the visible toasts of one screen and fans them out to
// subscribers.
type Notifier struct {
	clock clock.Clock
	ttl   time.Duration
	limit int

	mu      sync.Mutex
	toasts  []Toast
	subs    map[int]chan Toast
	nextSub int
}

// New creates a notifier. Toasts expire after ttl; at most limit are kept.
func New(ttl time.Duration, limit int, clk clock.Clock) *Notifier {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	if limit <= 0 {
		limit = 5
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Notifier{
		clock: clk,
		ttl:   ttl,
		limit: limit,
		subs:  make(map[int]chan Toast),
	}
}

// Success pushes a success toast.
func (n *Notifier) Success(msg string) Toast { return n.Push(LevelSuccess, msg) }

// Error pushes an error toast.
func (n *Notifier) Error(msg string) Toast { return n.Push(LevelError, msg) }

// Info pushes an informational toast.
func (n *Notifier) Info(msg string) Toast { return n.Push(LevelInfo, msg) }

// Push adds a toast, evicting the oldest when the limit is reached.
func (n *Notifier) Push(level Level, msg string) Toast {
	now := n.clock.Now()
	t := Toast{
		ID:        uid.New(),
		Level:     level,
		Message:   msg,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}

	n.mu.Lock()
	n.pruneLocked(now)
	if len(n.toasts) >= n.limit {
		n.toasts = append(n.toasts[:0], n.toasts[len(n.toasts)-n.limit+1:]...)
	}
	n.toasts = append(n.toasts, t)
	for _, ch := range n.subs {
		select {
		case ch <- t:
		default:
			// slow subscriber, drop
		}
	}
	n.mu.Unlock()

	return t
}

// Active returns the toasts that have not expired, oldest first.
func (n *Notifier) Active() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pruneLocked(n.clock.Now())
	out := make([]Toast, len(n.toasts))
	copy(out, n.toasts)
	return out
}

// Subscribe returns a channel receiving every new toast and a function that
// ends the subscription.
func (n *Notifier) Subscribe() (<-chan Toast, func()) {
	ch := make(chan Toast, subscriberBuffer)

	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

func (n *Notifier) pruneLocked(now time.Time) {
	kept := n.toasts[:0]
	for _, t := range n.toasts {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	n.toasts = kept
}
