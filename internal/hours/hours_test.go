package hours

import (
	"testing"
	"time"
)

func at(t *testing.T, clock string) func() time.Time {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	parsed, err := time.ParseInLocation("15:04:05", clock, loc)
	if err != nil {
		t.Fatalf("parse clock %q: %v", clock, err)
	}
	return func() time.Time { return parsed }
}

func TestWindowOpen(t *testing.T) {
	cases := []struct {
		name  string
		clock string
		want  bool
	}{
		{name: "mid morning", clock: "10:00:00", want: true},
		{name: "start boundary inclusive", clock: "08:30:00", want: true},
		{name: "end boundary inclusive", clock: "22:00:00", want: true},
		{name: "before opening", clock: "08:29:59", want: false},
		{name: "late night", clock: "23:15:00", want: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w, err := New(DefaultTimezone, DefaultStart, DefaultEnd, WithClock(at(t, c.clock)))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := w.Open(); got != c.want {
				t.Fatalf("Open() at %s = %v, want %v", c.clock, got, c.want)
			}
		})
	}
}

func TestWindowDisabled(t *testing.T) {
	w, err := New(DefaultTimezone, DefaultStart, DefaultEnd, Disabled(true), WithClock(at(t, "03:00:00")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !w.Open() {
		t.Fatal("disabled window should always be open")
	}
	if w.String() != "always open" {
		t.Fatalf("String() = %q", w.String())
	}
}

func TestWindowValidation(t *testing.T) {
	if _, err := New("Mars/Olympus", DefaultStart, DefaultEnd); err == nil {
		t.Fatal("bad timezone accepted")
	}
	if _, err := New(DefaultTimezone, "25:00", DefaultEnd); err == nil {
		t.Fatal("bad start accepted")
	}
	if _, err := New(DefaultTimezone, "22:00", "08:30"); err == nil {
		t.Fatal("inverted window accepted")
	}
}
