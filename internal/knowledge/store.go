package knowledge

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Entry categories recognised by the store. Rows in other categories are
// ignored with a debug log.
const (
	CategoryCompany   = "company"
	CategoryRole      = "role"
	CategoryFAQ       = "faq"
	CategoryStyle     = "style"
	CategoryObjective = "objective"
)

// DefaultRefreshInterval is how often Run re-reads the external source.
const DefaultRefreshInterval = 300 * time.Second

// Entry is one externally stored knowledge row. Value carries the decoded
// JSON document; only the fields present in it override the seeded entry.
type Entry struct {
	Category string
	Key      string
	Value    map[string]any
	Active   bool
}

// Source supplies knowledge entries from external storage.
type Source interface {
	FetchKnowledge(ctx context.Context) ([]Entry, error)
}

type seedDocument struct {
	Company    Company `yaml:"company"`
	Style      Style   `yaml:"style"`
	Objectives struct {
		ClosingPhrase string      `yaml:"closing_phrase"`
		Goals         []Objective `yaml:"goals"`
	} `yaml:"objectives"`
	FAQs  []FAQEntry `yaml:"faqs"`
	Roles []Role     `yaml:"roles"`
}

// Store assembles snapshots from the embedded seed plus an optional external
// source and hands them out without locking. Refresh swaps the whole
// snapshot; a failed refresh leaves the previous one serving.
type Store struct {
	logger        *zap.Logger
	source        Source
	interval      time.Duration
	recruiterName string
	formURL       string

	seed *seedDocument
	snap atomic.Pointer[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithSource attaches an external entry source consulted on every refresh.
func WithSource(src Source) Option {
	return func(s *Store) { s.source = src }
}

// WithRefreshInterval overrides the refresh cadence used by Run.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRecruiterName pins the recruiter identity regardless of seed or source.
func WithRecruiterName(name string) Option {
	return func(s *Store) { s.recruiterName = name }
}

// WithFormURL pins the application form link regardless of seed or source.
func WithFormURL(url string) Option {
	return func(s *Store) { s.formURL = url }
}

// New parses the embedded seed and builds the initial snapshot.
func New(logger *zap.Logger, opts ...Option) (*Store, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(seedYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge seed: %w", err)
	}
	s := &Store{
		logger:   logger,
		interval: DefaultRefreshInterval,
		seed:     &doc,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(s.build(nil))
	return s, nil
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Refresh pulls entries from the source and swaps in a new snapshot. Without
// a source it is a no-op.
func (s *Store) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	entries, err := s.source.FetchKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("fetch knowledge entries: %w", err)
	}
	snap := s.build(entries)
	s.snap.Store(snap)
	s.logger.Debug("knowledge refreshed",
		zap.Int("entries", len(entries)),
		zap.Int("roles", len(snap.RoleOrder)),
		zap.Int("faqs", len(snap.FAQs)),
	)
	return nil
}

// Run refreshes on the configured interval until the context ends. Refresh
// failures are logged and the previous snapshot keeps serving.
func (s *Store) Run(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("knowledge refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *Store) build(entries []Entry) *Snapshot {
	snap := &Snapshot{
		Company:       s.seed.Company,
		Style:         s.seed.Style,
		Objectives:    append([]Objective(nil), s.seed.Objectives.Goals...),
		ClosingPhrase: s.seed.Objectives.ClosingPhrase,
		FAQs:          append([]FAQEntry(nil), s.seed.FAQs...),
		Roles:         make(map[string]Role, len(s.seed.Roles)),
		RoleOrder:     make([]string, 0, len(s.seed.Roles)),
	}
	for _, role := range s.seed.Roles {
		snap.Roles[role.Key] = role
		snap.RoleOrder = append(snap.RoleOrder, role.Key)
	}

	for _, entry := range entries {
		if !entry.Active {
			continue
		}
		if err := s.apply(snap, entry); err != nil {
			s.logger.Warn("knowledge entry skipped",
				zap.String("category", entry.Category),
				zap.String("key", entry.Key),
				zap.Error(err),
			)
		}
	}

	if s.recruiterName != "" {
		snap.Company.RecruiterName = s.recruiterName
	}
	if s.formURL != "" {
		snap.Company.FormURL = s.formURL
	}
	return snap
}

func (s *Store) apply(snap *Snapshot, entry Entry) error {
	switch entry.Category {
	case CategoryRole:
		role, ok := snap.Roles[entry.Key]
		if !ok {
			role = Role{Key: entry.Key}
		}
		if err := decodeValue(entry.Value, &role); err != nil {
			return err
		}
		role.Key = entry.Key
		snap.Roles[entry.Key] = role
		if !ok {
			snap.RoleOrder = append(snap.RoleOrder, entry.Key)
		}
	case CategoryCompany:
		if err := decodeValue(entry.Value, &snap.Company); err != nil {
			return err
		}
	case CategoryStyle:
		if err := decodeValue(entry.Value, &snap.Style); err != nil {
			return err
		}
	case CategoryFAQ:
		faq := FAQEntry{Key: entry.Key}
		for i, existing := range snap.FAQs {
			if existing.Key == entry.Key {
				faq = snap.FAQs[i]
				break
			}
		}
		if err := decodeValue(entry.Value, &faq); err != nil {
			return err
		}
		faq.Key = entry.Key
		replaced := false
		for i, existing := range snap.FAQs {
			if existing.Key == entry.Key {
				snap.FAQs[i] = faq
				replaced = true
				break
			}
		}
		if !replaced {
			snap.FAQs = append(snap.FAQs, faq)
		}
	case CategoryObjective:
		var ov struct {
			Phrase string      `mapstructure:"phrase"`
			Goals  []Objective `mapstructure:"goals"`
		}
		if err := decodeValue(entry.Value, &ov); err != nil {
			return err
		}
		if ov.Phrase != "" {
			snap.ClosingPhrase = ov.Phrase
		}
		if len(ov.Goals) > 0 {
			snap.Objectives = ov.Goals
		}
	default:
		s.logger.Debug("unknown knowledge category",
			zap.String("category", entry.Category),
			zap.String("key", entry.Key),
		)
	}
	return nil
}

// SeedEntries renders the embedded seed as external-source entries, used to
// bootstrap an empty knowledge table.
func (s *Store) SeedEntries() ([]Entry, error) {
	var entries []Entry
	add := func(category, key string, v any) error {
		value, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", category, key, err)
		}
		entries = append(entries, Entry{Category: category, Key: key, Value: value, Active: true})
		return nil
	}
	if err := add(CategoryCompany, "info", s.seed.Company); err != nil {
		return nil, err
	}
	if err := add(CategoryStyle, "communication", s.seed.Style); err != nil {
		return nil, err
	}
	if err := add(CategoryObjective, "pipeline", map[string]any{
		"phrase": s.seed.Objectives.ClosingPhrase,
		"goals":  s.seed.Objectives.Goals,
	}); err != nil {
		return nil, err
	}
	for _, faq := range s.seed.FAQs {
		if err := add(CategoryFAQ, faq.Key, faq); err != nil {
			return nil, err
		}
	}
	for _, role := range s.seed.Roles {
		if err := add(CategoryRole, role.Key, role); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func decodeValue(value map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}
	return nil
}

func encodeValue(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
