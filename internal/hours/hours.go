// Package hours gates responses to a daily local-time window. Outside the
// window the transport stays silent; the restriction can be disabled for
// around-the-clock operation.
package hours

import (
	"fmt"
	"time"
)

// Defaults for the Singapore staffing workflow.
const (
	DefaultTimezone = "Asia/Singapore"
	DefaultStart    = "08:30"
	DefaultEnd      = "22:00"
)

// Window is an inclusive daily response window in one location.
type Window struct {
	loc      *time.Location
	start    int
	end      int
	disabled bool
	now      func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// Disabled turns the restriction off; Open always reports true.
func Disabled(disabled bool) Option {
	return func(w *Window) { w.disabled = disabled }
}

// New builds a window from "HH:MM" bounds in the named timezone.
func New(timezone, start, end string, opts ...Option) (*Window, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	startSec, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	endSec, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	if endSec < startSec {
		return nil, fmt.Errorf("window end %s before start %s", end, start)
	}
	w := &Window{
		loc:   loc,
		start: startSec,
		end:   endSec,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Open reports whether the assistant may respond right now. Both bounds
// are inclusive.
func (w *Window) Open() bool {
	if w.disabled {
		return true
	}
	now := w.now().In(w.loc)
	sec := now.Hour()*3600 + now.Minute()*60 + now.Second()
	return sec >= w.start && sec <= w.end
}

// String renders the window for startup logs.
func (w *Window) String() string {
	if w.disabled {
		return "always open"
	}
	return fmt.Sprintf("%s-%s %s", formatClock(w.start), formatClock(w.end), w.loc)
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

func formatClock(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/3600, sec%3600/60)
}
