package condition

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowUnit is the time unit of a duration window.
type WindowUnit string

const (
	Minutes WindowUnit = "minutes"
	Hours   WindowUnit = "hours"
	Days    WindowUnit = "days"
)

// WindowUnitOptions is the candidate list as presented in the raw document.
const WindowUnitOptions = "minutes / hours / days"

// Window is a (value, unit) duration pair. Variants that restrict the window
// to a fixed enumerated set keep that restriction at validation time; the
// model does not normalize the two forms into one shape.
type Window struct {
	Value int
	Unit  WindowUnit
}

// FixedMinuteWindows is the enumerated set ("5 / 15 / 30 / 60 minutes") used
// by the rolling resource variants (CPU, memory, disk, network, process
// resource).
var FixedMinuteWindows = []int{5, 15, 30, 60}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Value == 0 && w.Unit == ""
}

// Duration converts the window to a time.Duration.
func (w Window) Duration() time.Duration {
	switch w.Unit {
	case Minutes:
		return time.Duration(w.Value) * time.Minute
	case Hours:
		return time.Duration(w.Value) * time.Hour
	case Days:
		return time.Duration(w.Value) * 24 * time.Hour
	}
	return 0
}

// Validate checks the generic window form: positive value, known unit.
func (w Window) Validate() error {
	if w.Value <= 0 {
		return fmt.Errorf("duration value %d must be positive", w.Value)
	}
	switch w.Unit {
	case Minutes, Hours, Days:
		return nil
	}
	return fmt.Errorf("duration unit %q is not one of %q", w.Unit, WindowUnitOptions)
}

// validateFixed enforces membership in the fixed minutes enumeration.
func (w Window) validateFixed() error {
	if w.Unit != Minutes {
		return fmt.Errorf("duration unit %q: this variant only accepts minutes", w.Unit)
	}
	for _, v := range FixedMinuteWindows {
		if w.Value == v {
			return nil
		}
	}
	return fmt.Errorf("duration %d minutes is not one of the allowed set %v", w.Value, FixedMinuteWindows)
}

func (w Window) String() string {
	return fmt.Sprintf("%d %s", w.Value, w.Unit)
}

// ParseWindow parses "15 minutes" style values.
func ParseWindow(s string) (Window, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return Window{}, fmt.Errorf("duration %q: expected \"<value> <unit>\"", s)
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return Window{}, fmt.Errorf("duration %q: %w", s, err)
	}
	unit := WindowUnit(strings.ToLower(fields[1]))
	w := Window{Value: v, Unit: unit}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}
