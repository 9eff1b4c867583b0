package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

const sampleVerdict = `{
	"candidate_name": "Jane Tan",
	"candidate_email": "jane@example.com",
	"candidate_phone": "+65 9123 4567",
	"job_applied": "warehouse",
	"job_matched": "Warehouse Operations / Packer",
	"score": 8,
	"citizenship_status": "Singapore Citizen",
	"recommendation": "Top Candidate",
	"summary": "NS completed, NRIC S-prefix, two years picking experience."
}`

func TestScreenerParsesVerdict(t *testing.T) {
	stub := &stubGenerator{response: sampleVerdict}
	screener := NewScreener(stub, zap.NewNop(), 0)

	result, err := screener.Screen(context.Background(), "resume body", "JOB: Warehouse\nRequirements: SC only")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CandidateName != "Jane Tan" {
		t.Fatalf("unexpected name: %q", result.CandidateName)
	}
	if result.Score != 8 {
		t.Fatalf("unexpected score: %v", result.Score)
	}
	if result.Recommendation != ai.RecommendationTop {
		t.Fatalf("unexpected recommendation: %q", result.Recommendation)
	}
	if result.CitizenshipStatus != "Singapore Citizen" {
		t.Fatalf("unexpected citizenship: %q", result.CitizenshipStatus)
	}
	if result.Raw != sampleVerdict {
		t.Fatal("raw response not preserved")
	}

	if !strings.Contains(stub.lastPrompt, "JOB: Warehouse") {
		t.Fatal("prompt missing role catalog")
	}
	if !strings.Contains(stub.lastPrompt, "resume body") {
		t.Fatal("prompt missing resume text")
	}
	if !strings.Contains(stub.lastPrompt, "NRIC number (S/T = Citizen, F/G = PR)") {
		t.Fatal("prompt missing citizenship policy")
	}
	if !strings.Contains(stub.lastPrompt, `set recommendation to "Rejected" unless the role specifically allows foreigners`) {
		t.Fatal("prompt missing default-reject rule")
	}
}

func TestScreenerTruncatesResumeText(t *testing.T) {
	stub := &stubGenerator{response: sampleVerdict}
	screener := NewScreener(stub, zap.NewNop(), 0)

	long := strings.Repeat("a", maxResumeChars) + "TAIL"
	if _, err := screener.Screen(context.Background(), long, "roles"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(stub.lastPrompt, "TAIL") {
		t.Fatal("resume text not truncated")
	}
	if !strings.Contains(stub.lastPrompt, strings.Repeat("a", maxResumeChars)) {
		t.Fatal("truncation cut too much")
	}
}

func TestScreenerDegradesOnUnparseableResponse(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{name: "prose only", response: "The candidate looks strong but I cannot produce JSON."},
		{name: "malformed json", response: `{"candidate_name": "Jane", "score": 8,`},
		{name: "missing required fields", response: `{"candidate_name": "Jane", "score": 8}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			stub := &stubGenerator{response: c.response}
			screener := NewScreener(stub, zap.NewNop(), 0)

			result, err := screener.Screen(context.Background(), "resume", "roles")
			if err != nil {
				t.Fatalf("degraded path must not error: %v", err)
			}
			if result.Recommendation != ai.RecommendationReview {
				t.Fatalf("unexpected recommendation: %q", result.Recommendation)
			}
			if result.CandidateName != "Unknown" || result.JobMatched != "General" {
				t.Fatalf("unexpected placeholders: %+v", result)
			}
			if result.Score != 5 {
				t.Fatalf("unexpected score: %v", result.Score)
			}
			if !strings.HasPrefix(c.response, result.Summary) {
				t.Fatalf("summary should be a prefix of the raw response: %q", result.Summary)
			}
			if result.Raw != c.response {
				t.Fatal("raw response not preserved")
			}
		})
	}
}

func TestScreenerDegradedSummaryBounded(t *testing.T) {
	stub := &stubGenerator{response: strings.Repeat("x", degradedSummaryChars*3)}
	screener := NewScreener(stub, zap.NewNop(), 0)

	result, err := screener.Screen(context.Background(), "resume", "roles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Summary) != degradedSummaryChars {
		t.Fatalf("summary length = %d, want %d", len(result.Summary), degradedSummaryChars)
	}
}

func TestScreenerPropagatesTransportError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("model unavailable")}
	screener := NewScreener(stub, zap.NewNop(), 0)

	result, err := screener.Screen(context.Background(), "resume", "roles")
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Fatal("no result expected on transport failure")
	}
}

func TestScreenerRequiresResumeText(t *testing.T) {
	screener := NewScreener(&stubGenerator{}, zap.NewNop(), 0)

	if _, err := screener.Screen(context.Background(), "   ", "roles"); err == nil {
		t.Fatal("expected error for blank resume text")
	}
}

func TestScreenerDefaultsEmptyCatalog(t *testing.T) {
	stub := &stubGenerator{response: sampleVerdict}
	screener := NewScreener(stub, zap.NewNop(), 0)

	if _, err := screener.Screen(context.Background(), "resume", "  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stub.lastPrompt, "No specific job roles configured. Screen generally.") {
		t.Fatal("prompt missing empty-catalog fallback")
	}
}

func TestParseScreeningResultHandlesCodeFence(t *testing.T) {
	raw := "```json\n{\"candidate_name\": \"Tom Lim\", \"score\": \"7\", \"recommendation\": \"Review\", \"summary\": \"ok\"}\n```"

	result, ok := parseScreeningResult(raw)
	if !ok {
		t.Fatal("expected clean parse")
	}
	if result.CandidateName != "Tom Lim" {
		t.Fatalf("unexpected name: %q", result.CandidateName)
	}
	// String-typed scores are coerced.
	if result.Score != 7 {
		t.Fatalf("unexpected score: %v", result.Score)
	}
}

func TestParseScreeningResultToleratesProse(t *testing.T) {
	raw := "Here is my evaluation:\n" + sampleVerdict + "\nLet me know if anything else is needed."

	result, ok := parseScreeningResult(raw)
	if !ok {
		t.Fatal("expected clean parse despite surrounding prose")
	}
	if result.CandidateName != "Jane Tan" {
		t.Fatalf("unexpected name: %q", result.CandidateName)
	}
}

// The citizenship default-reject rule is enforced by the prompt, not code,
// so the embedded template must keep carrying it verbatim.
func TestScreeningPromptCarriesCitizenshipPolicy(t *testing.T) {
	stub := &stubGenerator{response: sampleVerdict}
	screener := NewScreener(stub, zap.NewNop(), 0)

	if _, err := screener.Screen(context.Background(), "resume body", "JOB: Packer"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, fragment := range []string{
		"CITIZENSHIP REQUIREMENT",
		`set recommendation to "Rejected"`,
		"JOB: Packer",
		"resume body",
	} {
		if !strings.Contains(stub.lastPrompt, fragment) {
			t.Fatalf("screening prompt missing %q", fragment)
		}
	}
}
