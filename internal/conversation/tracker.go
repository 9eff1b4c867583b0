package conversation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/ai"
)

// Repository persists conversation progress. Load returns nil without error
// for an unknown key.
type Repository interface {
	Load(ctx context.Context, key Key) (*State, error)
	Save(ctx context.Context, state *State) error
	RecordMessage(ctx context.Context, key Key, msg ai.Message) error
}

type session struct {
	mu       sync.Mutex
	state    *State
	restored bool
}

// Tracker owns the in-memory sessions and serializes turns per
// conversation. Restoration from the repository happens at most once per
// key per process; persistence is best effort and never fails a turn.
type Tracker struct {
	repo   Repository
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[Key]*session
}

// NewTracker builds a tracker. repo may be nil for memory-only operation.
func NewTracker(repo Repository, logger *zap.Logger) *Tracker {
	return &Tracker{
		repo:     repo,
		logger:   logger,
		sessions: make(map[Key]*session),
	}
}

func (t *Tracker) session(key Key) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[key]
	if !ok {
		sess = &session{state: NewState(key)}
		t.sessions[key] = sess
	}
	return sess
}

// Begin locks the conversation for one turn and returns its state. The
// first call for a key attempts restoration from the repository; a failed
// or empty load proceeds with the fresh in-memory state. release must be
// called when the turn finishes.
func (t *Tracker) Begin(ctx context.Context, key Key) (state *State, release func()) {
	sess := t.session(key)
	sess.mu.Lock()

	if !sess.restored {
		sess.restored = true
		if t.repo != nil {
			loaded, err := t.repo.Load(ctx, key)
			switch {
			case err != nil:
				t.logger.Warn("state restore failed, starting fresh",
					zap.String("conversation", key.String()),
					zap.Error(err),
				)
			case loaded != nil:
				loaded.Key = key
				if len(loaded.History) > HistoryLimit {
					loaded.History = loaded.History[len(loaded.History)-HistoryLimit:]
				}
				sess.state = loaded
				t.logger.Debug("state restored",
					zap.String("conversation", key.String()),
					zap.String("stage", string(loaded.Stage)),
					zap.Int("history", len(loaded.History)),
				)
			}
		}
	}
	return sess.state, sess.mu.Unlock
}

// Persist writes the turn's new messages and the current state. Failures
// are logged and swallowed; the conversation continues from memory.
func (t *Tracker) Persist(ctx context.Context, state *State, newMessages ...ai.Message) {
	if t.repo == nil {
		return
	}
	for _, msg := range newMessages {
		if err := t.repo.RecordMessage(ctx, state.Key, msg); err != nil {
			t.logger.Warn("message record failed",
				zap.String("conversation", state.Key.String()),
				zap.Error(err),
			)
		}
	}
	if err := t.repo.Save(ctx, state); err != nil {
		t.logger.Warn("state save failed",
			zap.String("conversation", state.Key.String()),
			zap.Error(err),
		)
	}
}

// Peek returns a copy of the current in-memory state, or false when the
// conversation has never been seen.
func (t *Tracker) Peek(key Key) (State, bool) {
	t.mu.Lock()
	sess, ok := t.sessions[key]
	t.mu.Unlock()
	if !ok {
		return State{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	copied := *sess.state
	copied.History = append([]ai.Message(nil), sess.state.History...)
	return copied, true
}

// Reset drops the in-memory session so the next turn starts fresh (and
// re-attempts restoration). Persisted data is untouched.
func (t *Tracker) Reset(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, key)
}
