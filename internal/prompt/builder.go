// Package prompt assembles the system prompt for conversation turns: a
// deterministic template over the candidate's state and the current
// knowledge snapshot, plus an optional retrieved-context block from
// semantic search.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/conversation"
	"github.com/hirelinehq/hireline/internal/knowledge"
)

// retrievalLimit caps how many FAQ and role hits the retrieved-context
// block carries per turn.
const retrievalLimit = 2

// Builder renders system prompts from the live knowledge snapshot.
type Builder struct {
	store    *knowledge.Store
	searcher *knowledge.Searcher
	logger   *zap.Logger
}

// New returns a Builder. The searcher may be nil, in which case
// RetrievedContext always returns the empty string.
func New(store *knowledge.Store, searcher *knowledge.Searcher, logger *zap.Logger) *Builder {
	return &Builder{store: store, searcher: searcher, logger: logger}
}

// Build renders the full system prompt for one turn. Sections appear in a
// fixed order; candidate facts and the focus section vary with state.
func (b *Builder) Build(state *conversation.State) string {
	snap := b.store.Snapshot()
	var parts []string

	parts = append(parts,
		fmt.Sprintf("You are %s, a recruiter at %s (%s).", snap.Company.RecruiterName, snap.Company.FullName, snap.Company.Name),
		"",
		"## YOUR ROLE",
		fmt.Sprintf("You're helping candidates find suitable part-time and contract positions in Singapore. You work for %s, a staffing agency.", snap.Company.Name),
		"",
	)

	parts = append(parts,
		"## HOW TO COMMUNICATE",
		fmt.Sprintf("- Be %s", snap.Style.Tone),
		"- Use casual language: 'u' instead of 'you', 'ur' instead of 'your', 'cos' instead of 'because'",
		"- Match the candidate's energy - if they're brief, be brief. If chatty, be more conversational",
		"- Keep responses natural and conversational, not scripted",
		"",
		"## MESSAGE FORMAT",
		"- Use '---' to split into multiple short messages (1-2 sentences each)",
		"- Less is more - don't over-explain",
		"- Example format:",
		`"got it!"`,
		"---",
		`"are u a sg citizen or pr?"`,
		"",
	)

	parts = append(parts, "## ABOUT THIS CANDIDATE")
	if state.CandidateName != "" {
		parts = append(parts, "- Name: "+state.CandidateName)
	}
	if state.AppliedRole != "" {
		title := state.AppliedRole
		if role, ok := snap.Roles[state.AppliedRole]; ok && role.Title != "" {
			title = role.Title
		}
		parts = append(parts, "- Interested in: "+title)
	}
	if state.Citizenship != conversation.CitizenshipUnknown {
		parts = append(parts, "- Citizenship: "+string(state.Citizenship))
	}
	var done []string
	if state.FormCompleted {
		done = append(done, "filled the application form")
	}
	if state.ResumeReceived {
		done = append(done, "sent their resume")
	}
	if state.ExperienceDiscussed {
		done = append(done, "discussed their experience")
	}
	if len(done) > 0 {
		parts = append(parts, "- Already done: "+strings.Join(done, ", "))
	}
	parts = append(parts, "")

	if next, ok := snap.NextObjective(state.Flags()); ok {
		parts = append(parts,
			"## YOUR CURRENT FOCUS",
			"- "+next.Description,
			"- Approach: "+next.Approach,
			"",
		)
	} else if state.ReadyToClose() {
		parts = append(parts,
			"## YOUR CURRENT FOCUS",
			"- All main info collected - can wrap up the conversation",
			fmt.Sprintf("- Use: \"%s\"", snap.Closing()),
			"",
		)
	}

	parts = append(parts,
		"## DON'T",
		"- Repeat information they already told you",
		"- Ask for things they've already provided (form/resume)",
		"- Be overly enthusiastic with exclamation marks",
		"- Promise to call them - just say you'll be in touch if shortlisted",
		"- Send very long messages - keep it casual and brief",
		"",
	)

	parts = append(parts,
		"## WHAT YOU KNOW",
		fmt.Sprintf("- Application form: %s (select '%s' as consultant)", snap.Company.FormURL, snap.Company.RecruiterName),
		"- Company: "+snap.Company.Description,
		"- EA Licence: "+snap.Company.EALicence,
		fmt.Sprintf("- Website: %s for more job listings", snap.Company.Website),
		"",
	)

	parts = append(parts, openingsSection(snap)...)

	return strings.Join(parts, "\n")
}

func openingsSection(snap *knowledge.Snapshot) []string {
	active := snap.ActiveRoles()
	if len(active) == 0 {
		return []string{
			"## CURRENT OPENINGS",
			"- No specific openings at the moment, but collect their info for future opportunities",
			"",
		}
	}

	parts := []string{"## CURRENT JOB OPENINGS"}
	for _, role := range active {
		title := role.Title
		if title == "" {
			title = role.Key
		}
		parts = append(parts, fmt.Sprintf("**%s**", title))
		if role.Salary != "" {
			parts = append(parts, "- Pay: "+role.Salary)
		}
		if role.Location != "" {
			parts = append(parts, "- Location: "+role.Location)
		}
		if role.WorkType != "" {
			parts = append(parts, "- Type: "+role.WorkType)
		}
		if role.Shifts != nil {
			parts = append(parts, fmt.Sprintf("- Shifts: Day (%s) or Overnight (%s)", orTBD(role.Shifts.Day), orTBD(role.Shifts.Overnight)))
		}
		if len(role.Requirements) > 0 {
			parts = append(parts, "- Requirements: "+strings.Join(role.Requirements, ", "))
		}
		if role.CitizenshipRequired == "SC" {
			parts = append(parts, "- **IMPORTANT: Singaporeans Only**")
		}
		if role.JobURL != "" {
			parts = append(parts,
				"- **Job Posting**: "+role.JobURL,
				"  (Share this link with candidates when they ask about the position)",
			)
		}
		parts = append(parts, "")
	}
	return parts
}

func orTBD(s string) string {
	if s == "" {
		return "TBD"
	}
	return s
}

// jobKeywords gate the role-search half of retrieval so that small talk
// does not pull job listings into the prompt.
var jobKeywords = []string{"job", "work", "position", "role", "apply", "hiring", "vacancy", "opening"}

// RetrievedContext runs a semantic pass over the inbound text and formats
// any hits as a block to append to the system prompt. Failures are logged
// and produce the empty string; the turn proceeds without augmentation.
func (b *Builder) RetrievedContext(ctx context.Context, query string) string {
	if b.searcher == nil || strings.TrimSpace(query) == "" {
		return ""
	}
	var blocks []string

	faqs, err := b.searcher.SearchFAQs(ctx, query)
	if err != nil {
		b.logger.Debug("faq retrieval unavailable", zap.Error(err))
	} else if len(faqs) > 0 {
		if len(faqs) > retrievalLimit {
			faqs = faqs[:retrievalLimit]
		}
		var sb strings.Builder
		sb.WriteString("Relevant FAQs:\n")
		for _, hit := range faqs {
			fmt.Fprintf(&sb, "- Q: %s\n  A: %s\n", hit.Entry.Question, hit.Entry.Answer)
		}
		blocks = append(blocks, sb.String())
	}

	if containsJobKeyword(query) {
		roles, err := b.searcher.SearchRoles(ctx, query)
		if err != nil {
			b.logger.Debug("role retrieval unavailable", zap.Error(err))
		} else if len(roles) > 0 {
			if len(roles) > retrievalLimit {
				roles = roles[:retrievalLimit]
			}
			snap := b.store.Snapshot()
			var sb strings.Builder
			sb.WriteString("Relevant job roles:\n")
			for _, hit := range roles {
				keywords := strings.Join(snap.Roles[hit.Key].Keywords, ", ")
				fmt.Fprintf(&sb, "- %s: keywords=[%s]\n", hit.Title, keywords)
			}
			blocks = append(blocks, sb.String())
		}
	}

	if len(blocks) == 0 {
		return ""
	}
	return "\n---\nRetrieved Context:\n" + strings.Join(blocks, "\n") + "\n---\n"
}

func containsJobKeyword(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range jobKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
