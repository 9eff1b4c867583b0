package engine

import (
	"strings"
	"time"
)

// Separator is the literal token the style guide tells the model to split
// replies on.
const Separator = "---"

// Part is one outbound chat message. Delay is how long the transport
// should wait before sending it; Threaded marks the part that should be
// sent as a reply to the trigger message.
type Part struct {
	Text     string
	Delay    time.Duration
	Threaded bool
}

// Reply is an ordered multi-part outbound message.
type Reply struct {
	Parts []Part
}

// Text joins the parts back together, for logs and persistence.
func (r *Reply) Text() string {
	texts := make([]string, 0, len(r.Parts))
	for _, p := range r.Parts {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n")
}

// Split breaks a reply on the separator into trimmed, non-empty segments
// in their original order. Text without a separator yields one segment.
func Split(s string) []string {
	var out []string
	for _, part := range strings.Split(s, Separator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
