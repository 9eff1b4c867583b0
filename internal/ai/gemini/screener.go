package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/ai"
	"github.com/hirelinehq/hireline/internal/util"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	// maxResumeChars bounds the resume text embedded in the screening prompt.
	maxResumeChars = 15000
	// degradedSummaryChars bounds the raw response kept as the summary when
	// the verdict cannot be parsed.
	degradedSummaryChars = 500

	defaultMaxLogLength = 200
)

// Screener evaluates resume text against the role catalog with a single
// model call and parses the structured verdict out of the free-form response.
type Screener struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewScreener(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Screener {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Screener{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Screen runs one screening call. Transport failures are returned as errors;
// an unparseable response degrades to a Review verdict carrying the raw text.
func (s *Screener) Screen(ctx context.Context, resumeText, roleCatalog string) (*ai.ScreeningResult, error) {
	resumeText = strings.TrimSpace(resumeText)
	if resumeText == "" {
		return nil, fmt.Errorf("resume text is required")
	}
	if strings.TrimSpace(roleCatalog) == "" {
		roleCatalog = "No specific job roles configured. Screen generally."
	}

	if runes := []rune(resumeText); len(runes) > maxResumeChars {
		resumeText = string(runes[:maxResumeChars])
	}

	prompt := buildScreeningPrompt(roleCatalog, resumeText)

	s.logger.Debug("resume screening request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("resume screening response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, s.maxLogLen)),
	)

	result, ok := parseScreeningResult(raw)
	if !ok {
		s.logger.Warn("screening verdict not parseable, degraded to review",
			zap.String("response_preview", util.TruncateForLog(raw, s.maxLogLen)),
		)
	}

	return result, nil
}

func buildScreeningPrompt(roleCatalog, resumeText string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job roles:\n{{JOB_ROLES}}\n\nResume:\n{{RESUME_TEXT}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{JOB_ROLES}}", roleCatalog)
	prompt = strings.ReplaceAll(prompt, "{{RESUME_TEXT}}", resumeText)
	return prompt
}

// parseScreeningResult extracts the JSON verdict from the response. The
// second return value reports whether the response parsed cleanly; when it
// did not, the result is the degraded Review placeholder.
func parseScreeningResult(raw string) (*ai.ScreeningResult, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err == nil && hasRequiredFields(data) {
		score := coerceFloat(data["score"])
		if math.IsNaN(score) {
			score = 0
		}
		return &ai.ScreeningResult{
			CandidateName:     coerceString(data["candidate_name"]),
			CandidateEmail:    coerceString(data["candidate_email"]),
			CandidatePhone:    coerceString(data["candidate_phone"]),
			JobApplied:        coerceString(data["job_applied"]),
			JobMatched:        coerceString(data["job_matched"]),
			Score:             score,
			CitizenshipStatus: coerceString(data["citizenship_status"]),
			Recommendation:    coerceString(data["recommendation"]),
			Summary:           coerceString(data["summary"]),
			Raw:               raw,
		}, true
	}

	summary := strings.TrimSpace(raw)
	if runes := []rune(summary); len(runes) > degradedSummaryChars {
		summary = string(runes[:degradedSummaryChars])
	}
	return &ai.ScreeningResult{
		CandidateName:     "Unknown",
		JobMatched:        "General",
		Score:             5,
		CitizenshipStatus: "Unknown",
		Recommendation:    ai.RecommendationReview,
		Summary:           summary,
		Raw:               raw,
	}, false
}

func hasRequiredFields(data map[string]any) bool {
	for _, field := range []string{"candidate_name", "score", "recommendation"} {
		if _, ok := data[field]; !ok {
			return false
		}
	}
	return true
}

// extractJSON takes the first-{ to last-} span so surrounding prose and
// markdown fences are tolerated.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
