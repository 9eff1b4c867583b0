// Package knowledge holds the recruitment knowledge base: company identity,
// communication style, conversation objectives, FAQ entries and the job role
// catalog. A static embedded seed provides defaults; an optional external
// source overrides entries field by field. Readers always work against an
// immutable snapshot.
package knowledge

// Company describes the agency identity referenced throughout prompts.
type Company struct {
	Name          string `yaml:"name" mapstructure:"name" json:"name,omitempty"`
	FullName      string `yaml:"full_name" mapstructure:"full_name" json:"full_name,omitempty"`
	Description   string `yaml:"description" mapstructure:"description" json:"description,omitempty"`
	EALicence     string `yaml:"ea_licence" mapstructure:"ea_licence" json:"ea_licence,omitempty"`
	Website       string `yaml:"website" mapstructure:"website" json:"website,omitempty"`
	RecruiterName string `yaml:"recruiter_name" mapstructure:"recruiter_name" json:"recruiter_name,omitempty"`
	FormURL       string `yaml:"application_form_url" mapstructure:"application_form_url" json:"application_form_url,omitempty"`
}

// Style carries the tunable parts of the communication style guide. The
// non-tunable rules (contractions, separator convention) are part of the
// prompt template itself.
type Style struct {
	Tone         string `yaml:"tone" mapstructure:"tone" json:"tone,omitempty"`
	MessageDelay string `yaml:"message_delay" mapstructure:"message_delay" json:"message_delay,omitempty"`
}

// Objective is one pipeline goal the assistant works toward. Lower priority
// numbers are pursued first.
type Objective struct {
	ID          string `yaml:"id" mapstructure:"id" json:"id,omitempty"`
	Name        string `yaml:"name" mapstructure:"name" json:"name,omitempty"`
	Description string `yaml:"description" mapstructure:"description" json:"description,omitempty"`
	Priority    int    `yaml:"priority" mapstructure:"priority" json:"priority,omitempty"`
	Indicator   string `yaml:"indicator" mapstructure:"indicator" json:"indicator,omitempty"`
	Approach    string `yaml:"approach" mapstructure:"approach" json:"approach,omitempty"`
}

// Objective completion indicators, matched against conversation state flags.
const (
	IndicatorForm        = "form_completed"
	IndicatorResume      = "resume_received"
	IndicatorExperience  = "experience_discussed"
	IndicatorEligibility = "eligibility_confirmed"
)

// FAQEntry is one question/answer pair usable for retrieval augmentation.
type FAQEntry struct {
	Key      string `yaml:"key" mapstructure:"key" json:"key,omitempty"`
	Topic    string `yaml:"topic" mapstructure:"topic" json:"topic,omitempty"`
	Question string `yaml:"question" mapstructure:"question" json:"question,omitempty"`
	Answer   string `yaml:"answer" mapstructure:"answer" json:"answer,omitempty"`
}

// Shifts describes day/overnight shift windows for roles that run them.
type Shifts struct {
	Day       string `yaml:"day" mapstructure:"day" json:"day,omitempty"`
	Overnight string `yaml:"overnight" mapstructure:"overnight" json:"overnight,omitempty"`
}

// Role is one catalog entry. Inactive roles are retained but excluded from
// matching and from the openings section of prompts. The "general" role is
// the always-active fallback and never participates in matching.
type Role struct {
	Key                 string   `yaml:"key" mapstructure:"key" json:"key,omitempty"`
	Title               string   `yaml:"title" mapstructure:"title" json:"title,omitempty"`
	Active              bool     `yaml:"is_active" mapstructure:"is_active" json:"is_active,omitempty"`
	Keywords            []string `yaml:"keywords" mapstructure:"keywords" json:"keywords,omitempty"`
	Salary              string   `yaml:"salary" mapstructure:"salary" json:"salary,omitempty"`
	Location            string   `yaml:"location" mapstructure:"location" json:"location,omitempty"`
	WorkType            string   `yaml:"work_type" mapstructure:"work_type" json:"work_type,omitempty"`
	Shifts              *Shifts  `yaml:"shifts" mapstructure:"shifts" json:"shifts,omitempty"`
	Responsibilities    []string `yaml:"responsibilities" mapstructure:"responsibilities" json:"responsibilities,omitempty"`
	Requirements        []string `yaml:"requirements" mapstructure:"requirements" json:"requirements,omitempty"`
	ScoringGuide        string   `yaml:"scoring_guide" mapstructure:"scoring_guide" json:"scoring_guide,omitempty"`
	ExperienceQuestions []string `yaml:"experience_questions" mapstructure:"experience_questions" json:"experience_questions,omitempty"`
	KeySkills           []string `yaml:"key_skills" mapstructure:"key_skills" json:"key_skills,omitempty"`
	Schedule            string   `yaml:"typical_schedule" mapstructure:"typical_schedule" json:"typical_schedule,omitempty"`
	CitizenshipRequired string   `yaml:"citizenship_required" mapstructure:"citizenship_required" json:"citizenship_required,omitempty"`
	JobURL              string   `yaml:"job_url" mapstructure:"job_url" json:"job_url,omitempty"`
	Notes               string   `yaml:"notes" mapstructure:"notes" json:"notes,omitempty"`
}

// GeneralRoleKey names the fallback catalog entry.
const GeneralRoleKey = "general"

// Snapshot is an immutable view of the assembled knowledge base. A Store
// swaps whole snapshots atomically; callers must not mutate one.
type Snapshot struct {
	Company       Company
	Style         Style
	Objectives    []Objective
	ClosingPhrase string
	FAQs          []FAQEntry
	Roles         map[string]Role
	RoleOrder     []string
}

// Role returns the catalog entry for key.
func (s *Snapshot) Role(key string) (Role, bool) {
	role, ok := s.Roles[key]
	return role, ok
}

// ActiveRoles returns active roles in catalog order, excluding the general
// fallback.
func (s *Snapshot) ActiveRoles() []Role {
	roles := make([]Role, 0, len(s.RoleOrder))
	for _, key := range s.RoleOrder {
		role, ok := s.Roles[key]
		if !ok || !role.Active || key == GeneralRoleKey {
			continue
		}
		roles = append(roles, role)
	}
	return roles
}

// PendingObjectives returns unmet objectives given the completion flags,
// preserving catalog order.
func (s *Snapshot) PendingObjectives(done map[string]bool) []Objective {
	pending := make([]Objective, 0, len(s.Objectives))
	for _, obj := range s.Objectives {
		if done[obj.Indicator] {
			continue
		}
		pending = append(pending, obj)
	}
	return pending
}

// NextObjective returns the lowest-priority-number unmet objective, or false
// when every objective is satisfied.
func (s *Snapshot) NextObjective(done map[string]bool) (Objective, bool) {
	pending := s.PendingObjectives(done)
	if len(pending) == 0 {
		return Objective{}, false
	}
	next := pending[0]
	for _, obj := range pending[1:] {
		if obj.Priority < next.Priority {
			next = obj
		}
	}
	return next, true
}
