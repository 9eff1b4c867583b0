package knowledge

import (
	"fmt"
	"strings"
)

// FirstContact renders the canned greeting for a brand-new conversation.
// Parts are joined with the "---" separator so the transport can split them
// into individual chat bubbles.
func (s *Snapshot) FirstContact(candidateName string) string {
	name := strings.TrimSpace(candidateName)
	if name == "" {
		name = "there"
	}
	parts := []string{
		fmt.Sprintf("Hi %s, I'm %s from %s :)", name, s.Company.RecruiterName, s.Company.Name),
		"---",
		fmt.Sprintf("Could u fill up this quick form for me? %s", s.Company.FormURL),
		"---",
		fmt.Sprintf("Just select '%s' as the consultant", s.Company.RecruiterName),
		"---",
		"Let me know once ur done and send me ur resume too",
	}
	return strings.Join(parts, "\n")
}

// ResumeAck renders the acknowledgement sent right after a resume arrives:
// a thank-you addressed by first name, then the opening screening question
// for the candidate's role. When no role was matched the question asks what
// they are looking for instead.
func (s *Snapshot) ResumeAck(candidateName, roleKey string) string {
	question := "what kind of work are u looking for?"
	if roleKey != "" {
		question = s.ExperienceQuestion(roleKey)
	}
	return fmt.Sprintf("thanks %s!\n---\n%s", firstName(candidateName), question)
}

// ExperienceQuestion returns the first screening question for the role.
// Unknown roles and roles without scripted questions fall back to the
// general role's opener.
func (s *Snapshot) ExperienceQuestion(roleKey string) string {
	if role, ok := s.Roles[roleKey]; ok && len(role.ExperienceQuestions) > 0 {
		return role.ExperienceQuestions[0]
	}
	if general, ok := s.Roles[GeneralRoleKey]; ok && len(general.ExperienceQuestions) > 0 {
		return general.ExperienceQuestions[0]
	}
	return "what kind of work experience do u have?"
}

// Closing returns the wrap-up phrase used once every objective is met.
func (s *Snapshot) Closing() string {
	if s.ClosingPhrase != "" {
		return s.ClosingPhrase
	}
	return "will contact u if shortlisted"
}

// ScreeningCatalog renders the active roles as the plain-text catalog
// embedded in the resume screening prompt.
func (s *Snapshot) ScreeningCatalog() string {
	active := s.ActiveRoles()
	if len(active) == 0 {
		return "No specific job roles configured. Screen generally."
	}
	blocks := make([]string, 0, len(active))
	for _, role := range active {
		var sb strings.Builder
		fmt.Fprintf(&sb, "JOB: %s", role.Title)
		if len(role.Requirements) > 0 {
			fmt.Fprintf(&sb, "\nRequirements: %s", strings.Join(role.Requirements, ", "))
		}
		if role.ScoringGuide != "" {
			fmt.Fprintf(&sb, "\nScoring: %s", role.ScoringGuide)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// Thinking delay profiles, seconds. The transport sleeps a random duration
// in range before sending each reply part.
var delayProfiles = map[string][2]float64{
	"instant":   {0, 0},
	"fast":      {0.5, 1.0},
	"normal":    {1.5, 3.0},
	"slow":      {3.0, 5.0},
	"very_slow": {5.0, 8.0},
}

// ThinkingRange resolves the configured message_delay profile, defaulting to
// normal for unknown names.
func (s *Snapshot) ThinkingRange() (min, max float64) {
	r, ok := delayProfiles[s.Style.MessageDelay]
	if !ok {
		r = delayProfiles["normal"]
	}
	return r[0], r[1]
}
