package scanner

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatch struct {
	raw        string
	fromSearch bool
}

type recorder struct {
	mu    sync.Mutex
	calls []dispatch
}

func (r *recorder) handle(raw string, fromSearch bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dispatch{raw: raw, fromSearch: fromSearch})
}

func (r *recorder) snapshot() []dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch(nil), r.calls...)
}

func newTestClassifier(t *testing.T) (*Classifier, *clock.Mock, *recorder) {
	t.Helper()
	mock := clock.NewMock()
	opts := DefaultOptions()
	opts.Clock = mock
	c := NewClassifier(opts)
	rec := &recorder{}
	c.SetHandler(rec.handle)
	t.Cleanup(c.Close)
	return c, mock, rec
}

// typeKeys sends each rune of s, advancing the clock by gap before every key.
func typeKeys(c *Classifier, mock *clock.Mock, s string, gap time.Duration, target Target) {
	for _, r := range s {
		mock.Add(gap)
		c.KeyDown(KeyEvent{Key: string(r), At: mock.Now(), Target: target})
	}
}

func TestClassifier_FastKeysOutsideInputAccumulate(t *testing.T) {
	c, mock, _ := newTestClassifier(t)

	typeKeys(c, mock, "ABCD", 20*time.Millisecond, TargetOther)

	assert.Equal(t, "ABCD", c.Buffer())
}

func TestClassifier_SlowKeysOutsideInputStillAccumulate(t *testing.T) {
	c, mock, _ := newTestClassifier(t)

	typeKeys(c, mock, "AB", 120*time.Millisecond, TargetOther)

	assert.Equal(t, "AB", c.Buffer())
}

func TestClassifier_SlowKeysInInputReset(t *testing.T) {
	c, mock, _ := newTestClassifier(t)

	for _, r := range "hello" {
		mock.Add(120 * time.Millisecond)
		c.KeyDown(KeyEvent{Key: string(r), At: mock.Now(), Target: TargetSearch})
		assert.Equal(t, string(r), c.Buffer())
	}
}

func TestClassifier_EnterFlushesBuffer(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "FZ-123", 10*time.Millisecond, TargetOther)
	out := c.KeyDown(KeyEvent{Key: KeyEnter, At: mock.Now(), Target: TargetOther})

	assert.True(t, out.PreventDefault)
	assert.False(t, out.ClearField)
	assert.Equal(t, "FZ-123", out.Code)
	assert.Empty(t, c.Buffer())
	assert.Equal(t, []dispatch{{raw: "FZ-123"}}, rec.snapshot())
}

func TestClassifier_EnterPrefersSearchField(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "XY", 10*time.Millisecond, TargetSearch)
	out := c.KeyDown(KeyEvent{Key: KeyTab, At: mock.Now(), Target: TargetSearch, FieldValue: " FZ-777 "})

	assert.True(t, out.PreventDefault)
	assert.True(t, out.ClearField)
	assert.Equal(t, []dispatch{{raw: "FZ-777", fromSearch: true}}, rec.snapshot())
	assert.Empty(t, c.Buffer())
}

func TestClassifier_EnterWithoutCodePassesThrough(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "A", 10*time.Millisecond, TargetOther)
	out := c.KeyDown(KeyEvent{Key: KeyEnter, At: mock.Now(), Target: TargetSearch, FieldValue: "x"})

	assert.False(t, out.PreventDefault)
	assert.Empty(t, rec.snapshot())
	assert.Empty(t, c.Buffer())
}

func TestClassifier_ModifiersAreIgnored(t *testing.T) {
	c, mock, _ := newTestClassifier(t)

	typeKeys(c, mock, "FZ", 10*time.Millisecond, TargetOther)
	c.KeyDown(KeyEvent{Key: KeyShift, At: mock.Now()})
	typeKeys(c, mock, "-1", 10*time.Millisecond, TargetOther)

	assert.Equal(t, "FZ-1", c.Buffer())
}

func TestClassifier_OtherNamedKeysClear(t *testing.T) {
	c, mock, _ := newTestClassifier(t)

	typeKeys(c, mock, "FZ-1", 10*time.Millisecond, TargetOther)
	c.KeyDown(KeyEvent{Key: "Backspace", At: mock.Now()})

	assert.Empty(t, c.Buffer())
}

func TestClassifier_IdleTriggerWithPrefix(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "FZ-A", 15*time.Millisecond, TargetOther)
	typeKeys(c, mock, "FZ-B", 15*time.Millisecond, TargetOther)
	mock.Add(150 * time.Millisecond)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, dispatch{raw: "FZ-AFZ-B"}, rec.snapshot()[0])
	assert.Empty(t, c.Buffer())
}

func TestClassifier_IdleTriggerInSearchFieldClearsIt(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "FZ-99", 15*time.Millisecond, TargetSearch)
	mock.Add(150 * time.Millisecond)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, dispatch{raw: "FZ-99", fromSearch: true}, rec.snapshot()[0])
}

func TestClassifier_IdleTriggerBareCodes(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target Target
		fires  bool
	}{
		{name: "bare code outside input", input: "12345", target: TargetOther, fires: true},
		{name: "bare code too short", input: "123", target: TargetOther, fires: false},
		{name: "bare code in text input", input: "12345", target: TargetInput, fires: false},
		{name: "two characters", input: "FZ", target: TargetOther, fires: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock, rec := newTestClassifier(t)

			typeKeys(c, mock, tt.input, 10*time.Millisecond, tt.target)
			mock.Add(150 * time.Millisecond)

			if tt.fires {
				require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
				assert.Equal(t, tt.input, rec.snapshot()[0].raw)
				return
			}
			// Give a stray timer goroutine the chance to run.
			time.Sleep(20 * time.Millisecond)
			assert.Empty(t, rec.snapshot())
			assert.Empty(t, c.Buffer())
		})
	}
}

func TestClassifier_KeysBeforeIdleRestartTimer(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "FZ-1", 10*time.Millisecond, TargetOther)
	mock.Add(130 * time.Millisecond)
	typeKeys(c, mock, "2", 10*time.Millisecond, TargetOther)
	mock.Add(140 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	mock.Add(20 * time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestClassifier_CloseCancelsIdle(t *testing.T) {
	c, mock, rec := newTestClassifier(t)

	typeKeys(c, mock, "FZ-123", 10*time.Millisecond, TargetOther)
	c.Close()
	mock.Add(time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	out := c.KeyDown(KeyEvent{Key: KeyEnter, At: mock.Now()})
	assert.False(t, out.PreventDefault)
}

func TestClassifier_HandlerCanBeSwapped(t *testing.T) {
	c, mock, first := newTestClassifier(t)
	second := &recorder{}
	c.SetHandler(second.handle)

	typeKeys(c, mock, "FZ-5", 10*time.Millisecond, TargetOther)
	c.KeyDown(KeyEvent{Key: KeyEnter, At: mock.Now()})

	assert.Empty(t, first.snapshot())
	assert.Len(t, second.snapshot(), 1)
}
