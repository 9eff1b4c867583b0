package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirelinehq/hireline/internal/ai"
	"github.com/hirelinehq/hireline/internal/conversation"
)

// Memory keeps everything in process. It backs tests and chat sessions
// started without a database DSN, and mirrors the Postgres merge semantics
// so both honor the same contract.
type Memory struct {
	mu         sync.Mutex
	candidates map[conversation.Key]*CandidateRecord
	messages   map[conversation.Key][]ai.Message
	resumes    map[string][]byte
}

// NewMemory returns an empty in-process repository.
func NewMemory() *Memory {
	return &Memory{
		candidates: make(map[conversation.Key]*CandidateRecord),
		messages:   make(map[conversation.Key][]ai.Message),
		resumes:    make(map[string][]byte),
	}
}

func (m *Memory) LoadState(ctx context.Context, key conversation.Key) (*conversation.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.candidates[key]
	if !ok {
		return nil, nil
	}
	return ReconstructState(rec, lastMessages(m.messages[key], conversation.HistoryLimit)), nil
}

func (m *Memory) SaveState(ctx context.Context, state *conversation.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(state.Key)
	if state.CandidateName != "" {
		rec.FullName = state.CandidateName
	}
	if state.AppliedRole != "" {
		rec.AppliedRole = state.AppliedRole
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) AppendMessage(ctx context.Context, key conversation.Key, msg ai.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[key] = append(m.messages[key], msg)
	return nil
}

func (m *Memory) LoadMessages(ctx context.Context, key conversation.Key, limit int) ([]ai.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastMessages(m.messages[key], limit), nil
}

func (m *Memory) SaveCandidate(ctx context.Context, rec *CandidateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.record(rec.Key())
	mergeCandidate(existing, rec)
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) UploadResume(ctx context.Context, key conversation.Key, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty resume payload")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "mem://resumes/" + uuid.New().String() + "_" + safeFilename(filename)
	m.resumes[url] = append([]byte(nil), data...)
	return url, nil
}

func (m *Memory) ListCandidates(ctx context.Context) ([]CandidateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]CandidateRecord, 0, len(m.candidates))
	for _, rec := range m.candidates {
		records = append(records, *rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].AIScore != records[j].AIScore {
			return records[i].AIScore > records[j].AIScore
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

func (m *Memory) PurgeCandidates(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := int64(len(m.candidates))
	m.candidates = make(map[conversation.Key]*CandidateRecord)
	m.messages = make(map[conversation.Key][]ai.Message)
	return removed, nil
}

func (m *Memory) Close() error {
	return nil
}

// Resume returns an uploaded payload by its URL, for tests.
func (m *Memory) Resume(url string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.resumes[url]
	return data, ok
}

// record returns the candidate for key, creating a fresh application row
// the way the Postgres upsert does. Callers hold the lock.
func (m *Memory) record(key conversation.Key) *CandidateRecord {
	rec, ok := m.candidates[key]
	if !ok {
		rec = &CandidateRecord{
			ID:             uuid.New().String(),
			Platform:       key.Platform,
			PlatformUserID: key.UserID,
			CurrentStatus:  StatusNewApplication,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		m.candidates[key] = rec
	}
	return rec
}

// mergeCandidate applies the upsert rules: identity fields only fill gaps
// or replace with non-empty values, screening fields overwrite wholesale.
func mergeCandidate(dst, src *CandidateRecord) {
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.FullName != "" {
		dst.FullName = src.FullName
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
	if src.AppliedRole != "" {
		dst.AppliedRole = src.AppliedRole
	}
	if src.ResumeURL != "" {
		dst.ResumeURL = src.ResumeURL
	}
	if src.Screened() {
		dst.CitizenshipStatus = src.CitizenshipStatus
		dst.CurrentStatus = src.CurrentStatus
		dst.AIScore = src.AIScore
		dst.AICategory = src.AICategory
		dst.AISummary = src.AISummary
		dst.ScreeningJSON = src.ScreeningJSON
	}
}

func lastMessages(all []ai.Message, limit int) []ai.Message {
	if limit <= 0 {
		limit = conversation.HistoryLimit
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]ai.Message(nil), all...)
}
