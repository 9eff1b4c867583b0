package conversation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/knowledge"
)

// Detector inspects one side of the dialogue and proposes a partial state
// update. Detectors are independent; several may fire on the same text and
// a miss simply returns a zero update.
type Detector interface {
	Name() string
	Detect(ctx context.Context, text string, state *State) Update
}

// Chain runs detectors in order and merges their updates. A panicking
// detector is logged and skipped; the turn always gets a result.
type Chain struct {
	detectors []Detector
	logger    *zap.Logger
}

// NewUserChain builds the detectors for candidate messages: form
// completion, role interest, citizenship mentions and call scheduling.
func NewUserChain(matcher *knowledge.Matcher, logger *zap.Logger) *Chain {
	return &Chain{
		logger: logger,
		detectors: []Detector{
			formCompletionDetector{},
			roleInterestDetector{matcher: matcher},
			citizenshipDetector{},
			schedulingDetector{},
		},
	}
}

// NewAssistantChain builds the detectors for generated replies: form link,
// resume request, experience question and closing signals.
func NewAssistantChain(store *knowledge.Store, logger *zap.Logger) *Chain {
	return &Chain{
		logger: logger,
		detectors: []Detector{
			formLinkDetector{store: store},
			resumeRequestDetector{},
			experienceDetector{},
			closingDetector{},
		},
	}
}

// Run applies every detector to the text and returns the merged update.
func (c *Chain) Run(ctx context.Context, text string, state *State) Update {
	var merged Update
	for _, d := range c.detectors {
		upd := c.detect(ctx, d, text, state)
		if upd.IsZero() {
			continue
		}
		c.logger.Debug("detector fired",
			zap.String("detector", d.Name()),
			zap.String("conversation", state.Key.String()),
		)
		merged = merged.Merge(upd)
	}
	return merged
}

func (c *Chain) detect(ctx context.Context, d Detector, text string, state *State) (upd Update) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("detector panicked",
				zap.String("detector", d.Name()),
				zap.Any("panic", r),
			)
			upd = Update{}
		}
	}()
	return d.Detect(ctx, text, state)
}

var formCompletionKeywords = []string{
	"done", "completed", "finished", "filled", "submitted",
	"i've completed", "i have completed", "just completed",
	"form done", "already done", "already filled",
}

type formCompletionDetector struct{}

func (formCompletionDetector) Name() string { return "form_completion" }

func (formCompletionDetector) Detect(_ context.Context, text string, state *State) Update {
	if state.FormCompleted {
		return Update{}
	}
	lower := strings.ToLower(text)
	for _, keyword := range formCompletionKeywords {
		if strings.Contains(lower, keyword) {
			return Update{FormCompleted: true, Stage: StageFormCompleted}
		}
	}
	return Update{}
}

type roleInterestDetector struct {
	matcher *knowledge.Matcher
}

func (roleInterestDetector) Name() string { return "role_interest" }

func (d roleInterestDetector) Detect(ctx context.Context, text string, _ *State) Update {
	if d.matcher == nil {
		return Update{}
	}
	key := d.matcher.Identify(ctx, text)
	if key == "" || key == knowledge.GeneralRoleKey {
		return Update{}
	}
	return Update{AppliedRole: key}
}

// citizenshipIndicators is scanned in order; the first substring hit wins,
// so specific phrases must come before their looser prefixes ("singapore
// citizen" before "citizen").
var citizenshipIndicators = []struct {
	phrase string
	status Citizenship
}{
	{"singapore citizen", CitizenshipSC},
	{"singaporean", CitizenshipSC},
	{"sg citizen", CitizenshipSC},
	{"citizen", CitizenshipSC},
	{"permanent resident", CitizenshipPR},
	{"pr", CitizenshipPR},
	{"foreigner", CitizenshipForeign},
	{"work permit", CitizenshipForeign},
	{"student pass", CitizenshipForeign},
	{"ep holder", CitizenshipForeign},
	{"s pass", CitizenshipForeign},
}

type citizenshipDetector struct{}

func (citizenshipDetector) Name() string { return "citizenship_mention" }

func (citizenshipDetector) Detect(_ context.Context, text string, _ *State) Update {
	lower := strings.ToLower(text)
	for _, ind := range citizenshipIndicators {
		if strings.Contains(lower, ind.phrase) {
			return Update{Citizenship: ind.status}
		}
	}
	return Update{}
}

var schedulingPatterns = []string{
	"pm", "am", "oclock", "o'clock", "available", "can make it", "free on",
}

type schedulingDetector struct{}

func (schedulingDetector) Name() string { return "call_scheduling" }

func (schedulingDetector) Detect(_ context.Context, text string, state *State) Update {
	if !state.ExperienceDiscussed {
		return Update{}
	}
	lower := strings.ToLower(text)
	for _, pattern := range schedulingPatterns {
		if strings.Contains(lower, pattern) {
			return Update{CallScheduled: true, Stage: StageCallScheduling}
		}
	}
	return Update{}
}

type formLinkDetector struct {
	store *knowledge.Store
}

func (formLinkDetector) Name() string { return "form_link" }

func (d formLinkDetector) Detect(_ context.Context, reply string, _ *State) Update {
	lower := strings.ToLower(reply)
	formURL := ""
	if d.store != nil {
		formURL = strings.ToLower(d.store.Snapshot().Company.FormURL)
	}
	if (formURL != "" && strings.Contains(lower, formURL)) || strings.Contains(lower, "application form") {
		return Update{Stage: StageFormSent}
	}
	return Update{}
}

type resumeRequestDetector struct{}

func (resumeRequestDetector) Name() string { return "resume_request" }

func (resumeRequestDetector) Detect(_ context.Context, reply string, state *State) Update {
	if !state.FormCompleted {
		return Update{}
	}
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "resume") && (strings.Contains(lower, "send") || strings.Contains(lower, "have")) {
		return Update{Stage: StageResumeRequested}
	}
	return Update{}
}

var experienceVocabulary = []string{"experience", "worked", "background", "skills"}

type experienceDetector struct{}

func (experienceDetector) Name() string { return "experience_asked" }

func (experienceDetector) Detect(_ context.Context, reply string, state *State) Update {
	if !state.ResumeReceived {
		return Update{}
	}
	lower := strings.ToLower(reply)
	for _, word := range experienceVocabulary {
		if strings.Contains(lower, word) {
			return Update{ExperienceDiscussed: true, Stage: StageExperienceAsked}
		}
	}
	return Update{}
}

var closingPhrases = []string{"will contact", "shortlisted", "be in touch", "get back to u"}

type closingDetector struct{}

func (closingDetector) Name() string { return "closing_signal" }

func (closingDetector) Detect(_ context.Context, reply string, _ *State) Update {
	lower := strings.ToLower(reply)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return Update{Stage: StageClosed}
		}
	}
	return Update{}
}
