package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestIdentifyKeywordFallback(t *testing.T) {
	matcher := NewMatcher(newTestStore(t), nil, zap.NewNop())

	cases := []struct {
		name string
		text string
		want string
	}{
		{name: "direct keyword", text: "any warehouse jobs available?", want: "warehouse_packer"},
		{name: "case insensitive", text: "I did PACKING before", want: "warehouse_packer"},
		{name: "inactive role never matches", text: "looking for a barista job", want: ""},
		{name: "no keyword", text: "hello, anything for me?", want: ""},
		{name: "empty", text: "", want: ""},
		{name: "whitespace", text: "   ", want: ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := matcher.Identify(context.Background(), c.text); got != c.want {
				t.Fatalf("Identify(%q)=%q want %q", c.text, got, c.want)
			}
		})
	}
}

func TestIdentifySemanticFirst(t *testing.T) {
	store := newTestStore(t)
	embedder := &stubEmbedder{fn: func(text string) ([]float32, error) {
		if strings.Contains(text, "Warehouse") {
			return []float32{1, 0}, nil
		}
		return []float32{0.9, 0.1}, nil
	}}
	matcher := NewMatcher(store, NewSearcher(store, embedder, zap.NewNop()), zap.NewNop())

	// No catalog keyword appears in the text; only the semantic path can hit.
	got := matcher.Identify(context.Background(), "moving boxes around a depot")
	if got != "warehouse_packer" {
		t.Fatalf("semantic match failed, got %q", got)
	}
}

func TestIdentifySemanticErrorFallsBack(t *testing.T) {
	store := newTestStore(t)
	embedder := &stubEmbedder{fn: func(string) ([]float32, error) {
		return nil, errors.New("embeddings down")
	}}
	matcher := NewMatcher(store, NewSearcher(store, embedder, zap.NewNop()), zap.NewNop())

	if got := matcher.Identify(context.Background(), "any warehouse openings?"); got != "warehouse_packer" {
		t.Fatalf("keyword fallback should win on embed failure, got %q", got)
	}
}

func TestIdentifyActivatedRole(t *testing.T) {
	src := &stubSource{entries: []Entry{
		{Category: CategoryRole, Key: "phone_researcher", Value: map[string]any{"is_active": true}, Active: true},
	}}
	store := newTestStore(t, WithSource(src))
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	matcher := NewMatcher(store, nil, zap.NewNop())

	if got := matcher.Identify(context.Background(), "I saw your posting about phone surveys"); got != "phone_researcher" {
		t.Fatalf("Identify = %q, want phone_researcher", got)
	}
}
