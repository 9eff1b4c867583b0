package ai

import (
	"context"
	"strings"
)

// Message roles as expected by completion backends.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn handed to a completion backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces one assistant reply for a system prompt plus history.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message, maxTokens int) (string, error)
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Screener evaluates resume text against a role catalog.
type Screener interface {
	Screen(ctx context.Context, resumeText, roleCatalog string) (*ScreeningResult, error)
}

// Screening recommendations. The screener degrades to RecommendationReview
// when the model response cannot be parsed.
const (
	RecommendationTop      = "Top Candidate"
	RecommendationReview   = "Review"
	RecommendationRejected = "Rejected"
)

// ScreeningResult is the structured verdict for one submitted resume.
// Immutable after creation; attached to the candidate record by value.
type ScreeningResult struct {
	CandidateName     string  `json:"candidate_name"`
	CandidateEmail    string  `json:"candidate_email"`
	CandidatePhone    string  `json:"candidate_phone"`
	JobApplied        string  `json:"job_applied"`
	JobMatched        string  `json:"job_matched"`
	Score             float64 `json:"score"`
	CitizenshipStatus string  `json:"citizenship_status"`
	Recommendation    string  `json:"recommendation"`
	Summary           string  `json:"summary"`
	Raw               string  `json:"-"`
}

// CategorizeRecommendation folds free-form recommendation text into one of the
// three known categories. Anything unrecognized lands in Review.
func CategorizeRecommendation(rec string) string {
	switch {
	case strings.Contains(rec, "Top"):
		return RecommendationTop
	case strings.Contains(rec, "Reject"):
		return RecommendationRejected
	default:
		return RecommendationReview
	}
}

// ValidMessages filters out entries with empty or whitespace-only content.
// Completion APIs reject empty turns.
func ValidMessages(messages []Message) []Message {
	valid := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		valid = append(valid, msg)
	}
	return valid
}
