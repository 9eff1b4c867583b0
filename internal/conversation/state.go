// Package conversation tracks per-candidate pipeline state: the stage enum,
// progress flags, bounded message history, and the detectors that infer
// state changes from unstructured chat text.
package conversation

import (
	"strings"

	"github.com/hirelinehq/hireline/internal/ai"
)

// Stage is the coarse position of a conversation in the recruitment
// pipeline. Progression is driven entirely by detectors; nothing enforces
// monotonic order.
type Stage string

const (
	StageNew             Stage = "new"
	StageFormSent        Stage = "form_sent"
	StageFormCompleted   Stage = "form_completed"
	StageResumeRequested Stage = "resume_requested"
	StageResumeReceived  Stage = "resume_received"
	StageExperienceAsked Stage = "experience_asked"
	StageCallScheduling  Stage = "call_scheduling"
	StageClosed          Stage = "conversation_closed"
)

// Citizenship is the candidate's work-eligibility status as far as the
// conversation or screening has established it.
type Citizenship string

const (
	CitizenshipUnknown Citizenship = ""
	CitizenshipSC      Citizenship = "SC"
	CitizenshipPR      Citizenship = "PR"
	CitizenshipForeign Citizenship = "Foreign"
)

// Platforms with first-class transports.
const (
	PlatformTelegram = "telegram"
	PlatformWhatsApp = "whatsapp"
)

// Key identifies one conversation.
type Key struct {
	Platform string
	UserID   string
}

func (k Key) String() string {
	return k.Platform + ":" + k.UserID
}

// HistoryLimit bounds the in-memory working history per conversation.
const HistoryLimit = 25

// State is the per-candidate conversation record.
type State struct {
	Key           Key
	CandidateName string
	AppliedRole   string
	Citizenship   Citizenship
	Stage         Stage

	FormCompleted       bool
	ResumeReceived      bool
	ExperienceDiscussed bool
	CallScheduled       bool

	History []ai.Message
}

// NewState returns a fresh record at the initial stage.
func NewState(key Key) *State {
	return &State{Key: key, Stage: StageNew}
}

// AppendMessage records a turn in the working history, trimming to the
// most recent HistoryLimit entries.
func (s *State) AppendMessage(role, content string) {
	s.History = append(s.History, ai.Message{Role: role, Content: content})
	if len(s.History) > HistoryLimit {
		s.History = append([]ai.Message(nil), s.History[len(s.History)-HistoryLimit:]...)
	}
}

// ValidHistory returns the history with blank entries removed, in order.
func (s *State) ValidHistory() []ai.Message {
	return ai.ValidMessages(s.History)
}

// Flags reports objective completion keyed by the knowledge indicators.
// Eligibility maps to call_scheduled, which only flips once scheduling
// evidence appears.
func (s *State) Flags() map[string]bool {
	return map[string]bool{
		"form_completed":        s.FormCompleted,
		"resume_received":       s.ResumeReceived,
		"experience_discussed":  s.ExperienceDiscussed,
		"eligibility_confirmed": s.CallScheduled,
	}
}

// ReadyToClose reports whether the three collection objectives are done.
func (s *State) ReadyToClose() bool {
	return s.FormCompleted && s.ResumeReceived && s.ExperienceDiscussed
}

// Summary renders a one-line human-readable state digest for logs and the
// inspection command.
func (s *State) Summary() string {
	var parts []string
	if s.CandidateName != "" {
		parts = append(parts, "Name: "+s.CandidateName)
	}
	if s.AppliedRole != "" {
		parts = append(parts, "Role: "+s.AppliedRole)
	}
	if s.Citizenship != CitizenshipUnknown {
		parts = append(parts, "Citizenship: "+string(s.Citizenship))
	}
	var done []string
	if s.FormCompleted {
		done = append(done, "form")
	}
	if s.ResumeReceived {
		done = append(done, "resume")
	}
	if s.ExperienceDiscussed {
		done = append(done, "experience")
	}
	if len(done) > 0 {
		parts = append(parts, "Completed: "+strings.Join(done, ", "))
	}
	parts = append(parts, "Stage: "+string(s.Stage))
	return strings.Join(parts, " | ")
}

// Update is a partial state change produced by a detector or an intake
// event. Zero-valued fields leave the state untouched; boolean flags only
// ever flip forward to true.
type Update struct {
	Stage         Stage
	CandidateName string
	AppliedRole   string
	Citizenship   Citizenship

	FormCompleted       bool
	ResumeReceived      bool
	ExperienceDiscussed bool
	CallScheduled       bool
}

// IsZero reports whether the update carries no change at all.
func (u Update) IsZero() bool {
	return u == Update{}
}

// Merge folds a later update into u. Later non-empty fields win; flags OR.
func (u Update) Merge(later Update) Update {
	if later.Stage != "" {
		u.Stage = later.Stage
	}
	if later.CandidateName != "" {
		u.CandidateName = later.CandidateName
	}
	if later.AppliedRole != "" {
		u.AppliedRole = later.AppliedRole
	}
	if later.Citizenship != CitizenshipUnknown {
		u.Citizenship = later.Citizenship
	}
	u.FormCompleted = u.FormCompleted || later.FormCompleted
	u.ResumeReceived = u.ResumeReceived || later.ResumeReceived
	u.ExperienceDiscussed = u.ExperienceDiscussed || later.ExperienceDiscussed
	u.CallScheduled = u.CallScheduled || later.CallScheduled
	return u
}

// Apply merges the update into the state and reports whether anything
// changed. Applying the same update twice is a no-op the second time.
func (s *State) Apply(u Update) bool {
	changed := false
	if u.Stage != "" && u.Stage != s.Stage {
		s.Stage = u.Stage
		changed = true
	}
	if u.CandidateName != "" && u.CandidateName != s.CandidateName {
		s.CandidateName = u.CandidateName
		changed = true
	}
	if u.AppliedRole != "" && u.AppliedRole != s.AppliedRole {
		s.AppliedRole = u.AppliedRole
		changed = true
	}
	if u.Citizenship != CitizenshipUnknown && u.Citizenship != s.Citizenship {
		s.Citizenship = u.Citizenship
		changed = true
	}
	if u.FormCompleted && !s.FormCompleted {
		s.FormCompleted = true
		changed = true
	}
	if u.ResumeReceived && !s.ResumeReceived {
		s.ResumeReceived = true
		changed = true
	}
	if u.ExperienceDiscussed && !s.ExperienceDiscussed {
		s.ExperienceDiscussed = true
		changed = true
	}
	if u.CallScheduled && !s.CallScheduled {
		s.CallScheduled = true
		changed = true
	}
	return changed
}
