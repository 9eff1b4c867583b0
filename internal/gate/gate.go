// Package gate screens inbound messages before they reach the engine:
// block and allow lists, a per-user sliding-window rate limit, and a spam
// keyword scan. It belongs to the transport; the engine never sees gated
// traffic.
package gate

import (
	"strings"
	"sync"
	"time"
)

// Decision is the gate's verdict for one inbound message.
type Decision string

const (
	Allowed        Decision = "allowed"
	Blocked        Decision = "blocked"
	NotWhitelisted Decision = "not_whitelisted"
	RateLimited    Decision = "rate_limited"
	Spam           Decision = "spam"
)

// Rate limit defaults.
const (
	DefaultRateLimit  = 10
	DefaultRateWindow = time.Minute
)

// RateLimitedNotice is what transports send back on a rate-limit trip.
// Blocked and spam traffic is dropped without a reply.
const RateLimitedNotice = "You're sending messages too quickly. Please wait a moment."

var spamKeywords = []string{
	"crypto", "bitcoin", "ethereum", "investment opportunity",
	"make money fast", "work from home", "earn $", "earn usd",
	"click here", "free money", "lottery", "you have won",
	"nigerian prince", "wire transfer", "western union",
	"telegram premium", "free premium", "hack", "password",
}

// Gate applies the checks in a fixed order: lists, rate limit, spam scan.
// The rate limiter only counts messages that pass the list checks.
type Gate struct {
	limit         int
	window        time.Duration
	now           func() time.Time
	blocked       map[string]bool
	whitelist     map[string]bool
	whitelistMode bool

	mu     sync.Mutex
	recent map[string][]time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithRateLimit overrides how many messages fit in one window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(g *Gate) {
		if limit > 0 {
			g.limit = limit
		}
		if window > 0 {
			g.window = window
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithBlockedUsers rejects these user ids outright.
func WithBlockedUsers(ids []string) Option {
	return func(g *Gate) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				g.blocked[id] = true
			}
		}
	}
}

// WithWhitelist restricts access to the listed ids when enabled. An
// enabled mode with an empty list still allows everyone.
func WithWhitelist(enabled bool, ids []string) Option {
	return func(g *Gate) {
		g.whitelistMode = enabled
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				g.whitelist[id] = true
			}
		}
	}
}

// New builds a gate with the default 10 messages / 60s rate limit.
func New(opts ...Option) *Gate {
	g := &Gate{
		limit:     DefaultRateLimit,
		window:    DefaultRateWindow,
		now:       time.Now,
		blocked:   make(map[string]bool),
		whitelist: make(map[string]bool),
		recent:    make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs the gate for one inbound message.
func (g *Gate) Check(userID, text string) Decision {
	if g.blocked[userID] {
		return Blocked
	}
	if g.whitelistMode && len(g.whitelist) > 0 && !g.whitelist[userID] {
		return NotWhitelisted
	}
	if g.rateLimited(userID) {
		return RateLimited
	}
	if ContainsSpam(text) {
		return Spam
	}
	return Allowed
}

// rateLimited prunes stale timestamps and records the message unless the
// user is already over the limit. Denied messages are not recorded, so a
// burst clears once the window passes.
func (g *Gate) rateLimited(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)
	kept := g.recent[userID][:0]
	for _, ts := range g.recent[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= g.limit {
		g.recent[userID] = kept
		return true
	}
	g.recent[userID] = append(kept, now)
	return false
}

// ContainsSpam reports whether the text carries a known spam marker.
func ContainsSpam(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range spamKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
