package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/ai"
)

// Similarity thresholds below which a hit is discarded.
const (
	DefaultRoleThreshold = 0.30
	DefaultFAQThreshold  = 0.40
)

const embedCacheCap = 100

// RoleHit is one semantic role match.
type RoleHit struct {
	Key   string
	Title string
	Score float64
}

// FAQHit is one semantic FAQ match.
type FAQHit struct {
	Entry FAQEntry
	Score float64
}

// Searcher ranks roles and FAQ entries against free text using embedding
// similarity. Embeddings are cached per text; when the cache fills, the
// oldest half is evicted.
type Searcher struct {
	store         *Store
	embedder      ai.Embedder
	logger        *zap.Logger
	roleThreshold float64
	faqThreshold  float64

	mu    sync.Mutex
	cache map[string][]float32
	order []string
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithRoleThreshold overrides the minimum role similarity.
func WithRoleThreshold(t float64) SearcherOption {
	return func(s *Searcher) { s.roleThreshold = t }
}

// WithFAQThreshold overrides the minimum FAQ similarity.
func WithFAQThreshold(t float64) SearcherOption {
	return func(s *Searcher) { s.faqThreshold = t }
}

// NewSearcher builds a searcher over the store's snapshots. The embedder
// must not be nil; callers without one skip semantic search entirely.
func NewSearcher(store *Store, embedder ai.Embedder, logger *zap.Logger, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		store:         store,
		embedder:      embedder,
		logger:        logger,
		roleThreshold: DefaultRoleThreshold,
		faqThreshold:  DefaultFAQThreshold,
		cache:         make(map[string][]float32, embedCacheCap),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchRoles returns active roles scoring at or above the role threshold,
// best first.
func (s *Searcher) SearchRoles(ctx context.Context, query string) ([]RoleHit, error) {
	qv, err := s.vector(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	snap := s.store.Snapshot()
	var hits []RoleHit
	for _, role := range snap.ActiveRoles() {
		rv, err := s.vector(ctx, roleSearchText(role))
		if err != nil {
			return nil, fmt.Errorf("embed role %s: %w", role.Key, err)
		}
		score := cosine(qv, rv)
		if score < s.roleThreshold {
			continue
		}
		hits = append(hits, RoleHit{Key: role.Key, Title: role.Title, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// TopRole returns the single best role match, or an empty key when nothing
// clears the threshold.
func (s *Searcher) TopRole(ctx context.Context, query string) (string, float64, error) {
	hits, err := s.SearchRoles(ctx, query)
	if err != nil {
		return "", 0, err
	}
	if len(hits) == 0 {
		return "", 0, nil
	}
	return hits[0].Key, hits[0].Score, nil
}

// SearchFAQs returns FAQ entries scoring at or above the FAQ threshold,
// best first.
func (s *Searcher) SearchFAQs(ctx context.Context, query string) ([]FAQHit, error) {
	qv, err := s.vector(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	snap := s.store.Snapshot()
	var hits []FAQHit
	for _, entry := range snap.FAQs {
		ev, err := s.vector(ctx, faqSearchText(entry))
		if err != nil {
			return nil, fmt.Errorf("embed faq %s: %w", entry.Key, err)
		}
		score := cosine(qv, ev)
		if score < s.faqThreshold {
			continue
		}
		hits = append(hits, FAQHit{Entry: entry, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

func (s *Searcher) vector(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	if v, ok := s.cache[text]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[text]; !ok {
		if len(s.order) >= embedCacheCap {
			drop := s.order[:embedCacheCap/2]
			for _, key := range drop {
				delete(s.cache, key)
			}
			s.order = append([]string(nil), s.order[embedCacheCap/2:]...)
			s.logger.Debug("embedding cache evicted", zap.Int("dropped", len(drop)))
		}
		s.cache[text] = v
		s.order = append(s.order, text)
	}
	return v, nil
}

func roleSearchText(role Role) string {
	parts := []string{role.Title}
	parts = append(parts, role.Keywords...)
	parts = append(parts, role.KeySkills...)
	if role.Notes != "" {
		parts = append(parts, role.Notes)
	}
	return strings.Join(parts, " ")
}

func faqSearchText(entry FAQEntry) string {
	return entry.Question + " " + entry.Answer
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
