package scanner

import (
	"fmt"
	"time"
)

// Target identifies where a keystroke landed.
type Target int

const (
	// TargetOther is anything that is not a text input.
	TargetOther Target = iota
	// TargetInput is a text input other than the search field.
	TargetInput
	// TargetSearch is the designated search/scan field.
	TargetSearch
)

// IsTextInput reports whether the target accepts typed text.
func (t Target) IsTextInput() bool {
	return t == TargetInput || t == TargetSearch
}

func (t Target) String() string {
	switch t {
	case TargetInput:
		return "input"
	case TargetSearch:
		return "search"
	default:
		return "other"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "other":
		*t = TargetOther
	case "input":
		*t = TargetInput
	case "search":
		*t = TargetSearch
	default:
		return fmt.Errorf("unknown key target %q", string(b))
	}
	return nil
}

// KeyEvent is a single keypress observed on the POS screen.
type KeyEvent struct {
	Key    string
	At     time.Time
	Target Target
	// FieldValue is the search field's value when Target is TargetSearch.
	FieldValue string
}

// Outcome tells the screen what to do with the keystroke.
type Outcome struct {
	PreventDefault bool   `json:"prevent_default"`
	ClearField     bool   `json:"clear_field"`
	Code           string `json:"code,omitempty"`
}
