package knowledge

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubSource struct {
	entries []Entry
	err     error
	calls   int
}

func (s *stubSource) FetchKnowledge(ctx context.Context) ([]Entry, error) {
	s.calls++
	return s.entries, s.err
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := New(zap.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestSeedSnapshot(t *testing.T) {
	store := newTestStore(t)
	snap := store.Snapshot()

	if snap.Company.Name == "" || snap.Company.RecruiterName == "" || snap.Company.FormURL == "" {
		t.Fatalf("company identity incomplete: %+v", snap.Company)
	}
	warehouse, ok := snap.Role("warehouse_packer")
	if !ok || !warehouse.Active {
		t.Fatalf("warehouse_packer should be seeded active, got %+v ok=%v", warehouse, ok)
	}
	if len(warehouse.ExperienceQuestions) == 0 || len(warehouse.Keywords) == 0 {
		t.Fatalf("warehouse_packer missing detail: %+v", warehouse)
	}
	general, ok := snap.Role(GeneralRoleKey)
	if !ok || !general.Active {
		t.Fatalf("general fallback should be seeded active, got ok=%v", ok)
	}
	if barista, _ := snap.Role("barista"); barista.Active {
		t.Fatal("barista should be seeded inactive")
	}

	for _, role := range snap.ActiveRoles() {
		if role.Key == GeneralRoleKey {
			t.Fatal("ActiveRoles must exclude the general entry")
		}
		if !role.Active {
			t.Fatalf("ActiveRoles returned inactive role %s", role.Key)
		}
	}
	if len(snap.Objectives) != 4 {
		t.Fatalf("expected 4 seeded objectives, got %d", len(snap.Objectives))
	}
	if snap.Closing() == "" {
		t.Fatal("closing phrase missing")
	}
}

func TestBuildAppliesEntries(t *testing.T) {
	cases := []struct {
		name  string
		entry Entry
		check func(t *testing.T, snap *Snapshot)
	}{
		{
			name: "partial role override keeps other fields",
			entry: Entry{
				Category: CategoryRole,
				Key:      "warehouse_packer",
				Value:    map[string]any{"salary": "$10-14/hr"},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				role, _ := snap.Role("warehouse_packer")
				if role.Salary != "$10-14/hr" {
					t.Fatalf("salary not overridden: %q", role.Salary)
				}
				if len(role.Keywords) == 0 || !role.Active {
					t.Fatalf("override clobbered untouched fields: %+v", role)
				}
			},
		},
		{
			name: "role activation flips seeded flag",
			entry: Entry{
				Category: CategoryRole,
				Key:      "barista",
				Value:    map[string]any{"is_active": true},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				role, _ := snap.Role("barista")
				if !role.Active {
					t.Fatal("barista should be activated")
				}
			},
		},
		{
			name: "new role is appended to catalog order",
			entry: Entry{
				Category: CategoryRole,
				Key:      "dish_collector",
				Value:    map[string]any{"title": "Dish Collector", "is_active": true, "keywords": []any{"dish"}},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				role, ok := snap.Role("dish_collector")
				if !ok || role.Title != "Dish Collector" || !role.Active {
					t.Fatalf("new role not applied: %+v ok=%v", role, ok)
				}
				if snap.RoleOrder[len(snap.RoleOrder)-1] != "dish_collector" {
					t.Fatalf("new role should come last, order=%v", snap.RoleOrder)
				}
			},
		},
		{
			name: "company override",
			entry: Entry{
				Category: CategoryCompany,
				Key:      "info",
				Value:    map[string]any{"recruiter_name": "Jia Min"},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				if snap.Company.RecruiterName != "Jia Min" {
					t.Fatalf("recruiter not overridden: %q", snap.Company.RecruiterName)
				}
				if snap.Company.Name == "" {
					t.Fatal("company name lost on partial override")
				}
			},
		},
		{
			name: "faq replaced by key",
			entry: Entry{
				Category: CategoryFAQ,
				Key:      "cpf",
				Value:    map[string]any{"answer": "CPF applies to SC and PR only."},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				var found *FAQEntry
				for i := range snap.FAQs {
					if snap.FAQs[i].Key == "cpf" {
						found = &snap.FAQs[i]
					}
				}
				if found == nil || found.Answer != "CPF applies to SC and PR only." {
					t.Fatalf("faq not replaced: %+v", found)
				}
				if found.Question == "" {
					t.Fatal("partial faq override dropped the seeded question")
				}
			},
		},
		{
			name: "closing phrase override",
			entry: Entry{
				Category: CategoryObjective,
				Key:      "closing",
				Value:    map[string]any{"phrase": "we will ping u if ur shortlisted"},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				if snap.Closing() != "we will ping u if ur shortlisted" {
					t.Fatalf("closing not overridden: %q", snap.Closing())
				}
			},
		},
		{
			name: "style override",
			entry: Entry{
				Category: CategoryStyle,
				Key:      "communication",
				Value:    map[string]any{"message_delay": "fast"},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				min, max := snap.ThinkingRange()
				if min != 0.5 || max != 1.0 {
					t.Fatalf("style delay not applied: %v-%v", min, max)
				}
			},
		},
		{
			name: "inactive entry ignored",
			entry: Entry{
				Category: CategoryRole,
				Key:      "warehouse_packer",
				Value:    map[string]any{"is_active": false},
				Active:   false,
			},
			check: func(t *testing.T, snap *Snapshot) {
				role, _ := snap.Role("warehouse_packer")
				if !role.Active {
					t.Fatal("soft-deleted entry must not be applied")
				}
			},
		},
		{
			name: "unknown category skipped",
			entry: Entry{
				Category: "mystery",
				Key:      "x",
				Value:    map[string]any{"a": 1},
				Active:   true,
			},
			check: func(t *testing.T, snap *Snapshot) {
				if _, ok := snap.Role("x"); ok {
					t.Fatal("unknown category must not create roles")
				}
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := &stubSource{entries: []Entry{c.entry}}
			store := newTestStore(t, WithSource(src))
			if err := store.Refresh(context.Background()); err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			c.check(t, store.Snapshot())
		})
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	src := &stubSource{entries: []Entry{{
		Category: CategoryCompany,
		Key:      "info",
		Value:    map[string]any{"recruiter_name": "Jia Min"},
		Active:   true,
	}}}
	store := newTestStore(t, WithSource(src))
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := store.Snapshot()

	src.err = errors.New("connection refused")
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if store.Snapshot() != before {
		t.Fatal("failed refresh must keep the previous snapshot")
	}
	if store.Snapshot().Company.RecruiterName != "Jia Min" {
		t.Fatal("previous overrides lost")
	}
}

func TestConfigOverridesWinOverSource(t *testing.T) {
	src := &stubSource{entries: []Entry{{
		Category: CategoryCompany,
		Key:      "info",
		Value:    map[string]any{"recruiter_name": "Jia Min", "application_form_url": "https://elsewhere.example/form"},
		Active:   true,
	}}}
	store := newTestStore(t,
		WithSource(src),
		WithRecruiterName("Siti"),
		WithFormURL("https://forms.example/mine"),
	)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := store.Snapshot()
	if snap.Company.RecruiterName != "Siti" {
		t.Fatalf("recruiter override lost: %q", snap.Company.RecruiterName)
	}
	if snap.Company.FormURL != "https://forms.example/mine" {
		t.Fatalf("form URL override lost: %q", snap.Company.FormURL)
	}
}

func TestSeedEntriesRoundTrip(t *testing.T) {
	base := newTestStore(t)
	entries, err := base.SeedEntries()
	if err != nil {
		t.Fatalf("SeedEntries: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no seed entries produced")
	}

	store := newTestStore(t, WithSource(&stubSource{entries: entries}))
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := store.Snapshot()
	want := base.Snapshot()

	role, ok := snap.Role("warehouse_packer")
	if !ok || !role.Active {
		t.Fatalf("round-trip lost warehouse_packer: ok=%v role=%+v", ok, role)
	}
	wantRole, _ := want.Role("warehouse_packer")
	if len(role.ExperienceQuestions) != len(wantRole.ExperienceQuestions) {
		t.Fatalf("questions lost in round-trip: %v", role.ExperienceQuestions)
	}
	if role.ExperienceQuestions[0] != wantRole.ExperienceQuestions[0] {
		t.Fatalf("question text changed: %q", role.ExperienceQuestions[0])
	}
	if snap.Company.EALicence != want.Company.EALicence {
		t.Fatalf("company licence changed: %q", snap.Company.EALicence)
	}
	if len(snap.Objectives) != len(want.Objectives) {
		t.Fatalf("objectives changed: %d vs %d", len(snap.Objectives), len(want.Objectives))
	}
	if snap.Closing() != want.Closing() {
		t.Fatalf("closing changed: %q", snap.Closing())
	}
}

func TestNextObjective(t *testing.T) {
	snap := newTestStore(t).Snapshot()

	cases := []struct {
		name     string
		done     map[string]bool
		wantID   string
		wantNone bool
	}{
		{name: "nothing done", done: nil, wantID: "obj_form"},
		{name: "form done", done: map[string]bool{IndicatorForm: true}, wantID: "obj_resume"},
		{
			name: "form and resume done",
			done: map[string]bool{IndicatorForm: true, IndicatorResume: true},
			wantID: "obj_experience",
		},
		{
			name: "all but eligibility",
			done: map[string]bool{
				IndicatorForm:       true,
				IndicatorResume:     true,
				IndicatorExperience: true,
			},
			wantID: "obj_eligibility",
		},
		{
			name: "everything done",
			done: map[string]bool{
				IndicatorForm:        true,
				IndicatorResume:      true,
				IndicatorExperience:  true,
				IndicatorEligibility: true,
			},
			wantNone: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			obj, ok := snap.NextObjective(c.done)
			if c.wantNone {
				if ok {
					t.Fatalf("expected no pending objective, got %s", obj.ID)
				}
				return
			}
			if !ok || obj.ID != c.wantID {
				t.Fatalf("want %s, got %s ok=%v", c.wantID, obj.ID, ok)
			}
		})
	}
}
