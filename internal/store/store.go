// Package store persists candidate records, conversation transcripts, and
// the editable knowledgebase. The Postgres implementation is the durable
// backend; Memory is a drop-in for tests and chat sessions started without
// a database.
package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/hirelinehq/hireline/internal/ai"
	"github.com/hirelinehq/hireline/internal/conversation"
)

// Candidate pipeline statuses as stored in the database.
const (
	StatusNewApplication = "new_application"
	StatusScreened       = "ai_screened"
)

// CitizenshipNotIdentified is stored when screening found no clear signal.
const CitizenshipNotIdentified = "Not Identified"

// Repository is the persistence surface used by the engine, the tracker
// (via Conversations), and the admin commands.
type Repository interface {
	LoadState(ctx context.Context, key conversation.Key) (*conversation.State, error)
	SaveState(ctx context.Context, state *conversation.State) error
	AppendMessage(ctx context.Context, key conversation.Key, msg ai.Message) error
	LoadMessages(ctx context.Context, key conversation.Key, limit int) ([]ai.Message, error)
	SaveCandidate(ctx context.Context, rec *CandidateRecord) error
	UploadResume(ctx context.Context, key conversation.Key, data []byte, filename string) (string, error)
	ListCandidates(ctx context.Context) ([]CandidateRecord, error)
	PurgeCandidates(ctx context.Context) (int64, error)
	Close() error
}

// CandidateRecord mirrors one row of the candidates table.
type CandidateRecord struct {
	ID                string
	Platform          string
	PlatformUserID    string
	Username          string
	FullName          string
	Email             string
	Phone             string
	AppliedRole       string
	CitizenshipStatus string
	CurrentStatus     string
	AIScore           float64
	AICategory        string
	AISummary         string
	ScreeningJSON     string
	ResumeURL         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Key returns the conversation identity of the record.
func (r *CandidateRecord) Key() conversation.Key {
	return conversation.Key{Platform: r.Platform, UserID: r.PlatformUserID}
}

// Screened reports whether the record carries screening results.
func (r *CandidateRecord) Screened() bool {
	return r.CurrentStatus == StatusScreened
}

// DisplayName returns the stored name, or a platform placeholder so
// exports and logs never show a blank candidate.
func (r *CandidateRecord) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return titleCase(r.Platform) + " User " + r.PlatformUserID
}

// ContextSummary renders a one-line digest of what is known about the
// candidate, for logs and the export detail sheet.
func (r *CandidateRecord) ContextSummary() string {
	var parts []string
	if r.FullName != "" {
		parts = append(parts, "Name: "+r.FullName)
	}
	if r.AppliedRole != "" {
		parts = append(parts, "Applied for: "+r.AppliedRole)
	}
	if r.CitizenshipStatus != "" {
		status := r.CitizenshipStatus
		switch status {
		case "SC":
			status = "Singapore Citizen"
		case "PR":
			status = "Permanent Resident"
		case "Foreign":
			status = "Foreigner"
		}
		parts = append(parts, "Citizenship: "+status)
	}
	if r.ResumeURL != "" {
		parts = append(parts, "Resume: Received")
	}
	if r.AIScore > 0 {
		parts = append(parts, "AI Score: "+strconv.FormatFloat(r.AIScore, 'f', -1, 64)+"/10")
	}
	if r.AICategory != "" {
		parts = append(parts, "Category: "+r.AICategory)
	}
	return strings.Join(parts, " | ")
}

// NewCandidateRecord folds an optional screening verdict into a persistable
// record. With no verdict the record stays a plain application entry. An
// empty name stays empty so upserts never overwrite a known name with a
// placeholder.
func NewCandidateRecord(key conversation.Key, username, fullName string, verdict *ai.ScreeningResult, resumeURL string) *CandidateRecord {
	rec := &CandidateRecord{
		Platform:       key.Platform,
		PlatformUserID: key.UserID,
		Username:       username,
		FullName:       fullName,
		CurrentStatus:  StatusNewApplication,
		ResumeURL:      resumeURL,
	}
	if verdict == nil {
		return rec
	}

	if verdict.CandidateName != "" {
		rec.FullName = verdict.CandidateName
	}
	rec.Email = verdict.CandidateEmail
	rec.Phone = verdict.CandidatePhone
	rec.AppliedRole = verdict.JobMatched
	rec.AIScore = verdict.Score
	rec.AICategory = ai.CategorizeRecommendation(verdict.Recommendation)
	rec.AISummary = verdict.Summary
	rec.CitizenshipStatus = MapCitizenship(verdict.CitizenshipStatus)
	rec.CurrentStatus = StatusScreened
	if raw, err := json.Marshal(verdict); err == nil {
		rec.ScreeningJSON = string(raw)
	}
	return rec
}

// MapCitizenship folds the screener's verbose citizenship strings into the
// short stored form.
func MapCitizenship(status string) string {
	switch status {
	case "Singapore Citizen":
		return string(conversation.CitizenshipSC)
	case "PR":
		return string(conversation.CitizenshipPR)
	case "Foreigner":
		return string(conversation.CitizenshipForeign)
	default:
		return CitizenshipNotIdentified
	}
}

// ReconstructState rebuilds conversation state from a stored record. Stage
// and progress flags are inferred: a stored resume implies receipt, a
// screening score implies the experience discussion happened, and either
// implies the form was completed at some point.
func ReconstructState(rec *CandidateRecord, history []ai.Message) *conversation.State {
	st := conversation.NewState(rec.Key())
	st.CandidateName = rec.FullName
	st.AppliedRole = rec.AppliedRole
	st.Citizenship = parseCitizenship(rec.CitizenshipStatus)
	if rec.AIScore > 0 || rec.ResumeURL != "" {
		st.FormCompleted = true
		st.Stage = conversation.StageFormCompleted
	}
	if rec.ResumeURL != "" {
		st.ResumeReceived = true
		st.Stage = conversation.StageResumeReceived
	}
	if rec.AIScore > 0 {
		st.ExperienceDiscussed = true
		st.Stage = conversation.StageExperienceAsked
	}
	st.History = history
	return st
}

func parseCitizenship(stored string) conversation.Citizenship {
	switch conversation.Citizenship(stored) {
	case conversation.CitizenshipSC, conversation.CitizenshipPR, conversation.CitizenshipForeign:
		return conversation.Citizenship(stored)
	default:
		return conversation.CitizenshipUnknown
	}
}

// Conversations adapts a Repository to the tracker's persistence interface.
func Conversations(repo Repository) conversation.Repository {
	return conversationAdapter{repo: repo}
}

type conversationAdapter struct {
	repo Repository
}

func (a conversationAdapter) Load(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	return a.repo.LoadState(ctx, key)
}

func (a conversationAdapter) Save(ctx context.Context, state *conversation.State) error {
	return a.repo.SaveState(ctx, state)
}

func (a conversationAdapter) RecordMessage(ctx context.Context, key conversation.Key, msg ai.Message) error {
	return a.repo.AppendMessage(ctx, key, msg)
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func safeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "resume"
	}
	return strings.ReplaceAll(name, " ", "_")
}
