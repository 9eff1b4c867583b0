package knowledge

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Matcher maps candidate free text to a role key. Semantic search runs
// first when available; keyword containment over active roles is the
// fallback. The general entry and inactive roles never match.
type Matcher struct {
	store    *Store
	searcher *Searcher
	logger   *zap.Logger
}

// NewMatcher builds a matcher. searcher may be nil, in which case only the
// keyword fallback runs.
func NewMatcher(store *Store, searcher *Searcher, logger *zap.Logger) *Matcher {
	return &Matcher{store: store, searcher: searcher, logger: logger}
}

// Identify returns the role key mentioned in text, or an empty string when
// no active role matches. It never fails; semantic errors degrade to the
// keyword scan.
func (m *Matcher) Identify(ctx context.Context, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	if m.searcher != nil {
		key, score, err := m.searcher.TopRole(ctx, trimmed)
		switch {
		case err != nil:
			m.logger.Debug("semantic role match unavailable", zap.Error(err))
		case key != "":
			m.logger.Debug("role matched semantically",
				zap.String("role", key),
				zap.Float64("score", score),
			)
			return key
		}
	}

	lower := strings.ToLower(trimmed)
	snap := m.store.Snapshot()
	for _, key := range snap.RoleOrder {
		role, ok := snap.Roles[key]
		if !ok || !role.Active || key == GeneralRoleKey {
			continue
		}
		for _, keyword := range role.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(lower, keyword) {
				m.logger.Debug("role matched by keyword",
					zap.String("role", key),
					zap.String("keyword", keyword),
				)
				return key
			}
		}
	}
	return ""
}
