package engine

import (
	"testing"
	"time"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "three parts", in: "a---b---c", want: []string{"a", "b", "c"}},
		{name: "no separator", in: "single message", want: []string{"single message"}},
		{name: "trims whitespace", in: "got it!\n---\nare u free?", want: []string{"got it!", "are u free?"}},
		{name: "drops empties", in: "---a------b---", want: []string{"a", "b"}},
		{name: "blank input", in: "   ", want: nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Split(c.in)
			if len(got) != len(c.want) {
				t.Fatalf("Split(%q) = %v, want %v", c.in, got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("Split(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestSegmentPacing(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{}, nil, nil)
	env.engine.cfg.TypingSpeed = 10 * time.Millisecond
	env.engine.cfg.MaxPartDelay = 2 * time.Second

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	reply := env.engine.segment("short---" + string(long))

	if len(reply.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(reply.Parts))
	}
	if !reply.Parts[0].Threaded || reply.Parts[1].Threaded {
		t.Fatalf("only the first part should be threaded: %+v", reply.Parts)
	}
	if reply.Parts[0].Delay <= 0 {
		t.Fatal("first part has no delay")
	}
	// 400 chars at 10ms/char alone exceeds the 2s cap.
	if reply.Parts[1].Delay != 2*time.Second {
		t.Fatalf("long part delay = %v, want capped at 2s", reply.Parts[1].Delay)
	}
	if reply.Parts[1].Delay < reply.Parts[0].Delay {
		t.Fatalf("longer part got the shorter delay: %v < %v", reply.Parts[1].Delay, reply.Parts[0].Delay)
	}
}

func TestReplyTextJoinsParts(t *testing.T) {
	r := &Reply{Parts: []Part{{Text: "a"}, {Text: "b"}}}
	if got := r.Text(); got != "a\nb" {
		t.Fatalf("Text() = %q", got)
	}
}
