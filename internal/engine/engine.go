// Package engine orchestrates conversation turns: restore state, run the
// inbound detectors, build the system prompt, call the model, run the
// reply detectors, persist, and segment the reply for delivery. Resume
// intake is a parallel path that screens the document and answers with a
// canned acknowledgment instead of a second model call.
package engine

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/ai"
	"github.com/hirelinehq/hireline/internal/conversation"
	"github.com/hirelinehq/hireline/internal/knowledge"
	"github.com/hirelinehq/hireline/internal/logger"
	"github.com/hirelinehq/hireline/internal/prompt"
	"github.com/hirelinehq/hireline/internal/store"
	"github.com/hirelinehq/hireline/internal/util"
)

const (
	// Apology is sent when the model call fails. The candidate never sees
	// a raw error.
	Apology = "sorry, having some trouble. could u try again?"

	// EmptyPlaceholder stands in for blank input; completion APIs reject
	// empty turns.
	EmptyPlaceholder = "[Empty message]"

	// ResumeNote is the synthetic history entry recorded on document
	// intake, so later model calls know a resume arrived even though no
	// literal user text did.
	ResumeNote = "[Candidate sent their resume]"
)

// Configuration defaults.
const (
	DefaultMaxTokens    = 1000
	DefaultLLMTimeout   = 30 * time.Second
	DefaultTypingSpeed  = 25 * time.Millisecond
	DefaultMaxPartDelay = 8 * time.Second
)

// File is an uploaded document attached to an inbound delivery.
type File struct {
	Data     []byte
	Filename string
	MIME     string
}

// Inbound is one delivery handed over by a transport. Text and File are
// mutually exclusive in practice; the transport routes files to
// HandleResume after extraction.
type Inbound struct {
	Key         conversation.Key
	Text        string
	DisplayName string
	File        *File
}

// Config tunes the per-turn behavior. Zero values fall back to defaults.
type Config struct {
	// MaxTokens bounds each completion.
	MaxTokens int
	// LLMTimeout bounds each completion call; timeouts follow the apology
	// path like any other model failure.
	LLMTimeout time.Duration
	// TypingSpeed is the per-character delivery delay component.
	TypingSpeed time.Duration
	// MaxPartDelay caps the total delay of a single reply part.
	MaxPartDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = DefaultLLMTimeout
	}
	if c.TypingSpeed <= 0 {
		c.TypingSpeed = DefaultTypingSpeed
	}
	if c.MaxPartDelay <= 0 {
		c.MaxPartDelay = DefaultMaxPartDelay
	}
	return c
}

// Deps are the collaborators an Engine orchestrates. Repository and
// Screener may be nil; the engine degrades to memory-only operation and
// unscreened intake respectively.
type Deps struct {
	Tracker            *conversation.Tracker
	Knowledge          *knowledge.Store
	Builder            *prompt.Builder
	UserDetectors      *conversation.Chain
	AssistantDetectors *conversation.Chain
	Matcher            *knowledge.Matcher
	Completer          ai.Completer
	Screener           ai.Screener
	Repository         store.Repository
	Logger             *zap.Logger
}

// Engine is the conversation state machine orchestrator. Turns for one
// conversation are serialized by the tracker; different conversations run
// concurrently.
type Engine struct {
	deps Deps
	cfg  Config

	// randFloat draws the thinking-delay fraction; injected in tests.
	randFloat func() float64
}

// New builds an engine. Logger must not be nil.
func New(deps Deps, cfg Config) *Engine {
	return &Engine{
		deps:      deps,
		cfg:       cfg.withDefaults(),
		randFloat: rand.Float64,
	}
}

// HandleText processes one text turn and returns the segmented reply.
// All failures are contained: the reply is at worst the canned apology.
func (e *Engine) HandleText(ctx context.Context, in Inbound) *Reply {
	log := logger.WithConversation(e.deps.Logger, in.Key.Platform, in.Key.UserID)

	state, release := e.deps.Tracker.Begin(ctx, in.Key)
	defer release()

	text := strings.TrimSpace(in.Text)
	if text == "" {
		text = EmptyPlaceholder
	}

	if upd := e.deps.UserDetectors.Run(ctx, text, state); state.Apply(upd) {
		log.Debug("state updated from candidate text",
			zap.String(logger.FieldStage, string(state.Stage)))
	}

	priorTurns := len(state.ValidHistory())
	state.AppendMessage(ai.RoleUser, text)
	userMsg := ai.Message{Role: ai.RoleUser, Content: text}

	// The opening message is canned, never generated: the first thing a
	// candidate reads must carry the form link verbatim.
	if priorTurns == 0 {
		greeting := e.snapshot().FirstContact(displayName(in, state))
		reply := e.respond(ctx, state, greeting, userMsg, log)
		log.Info("first contact sent", zap.String(logger.FieldStage, string(state.Stage)))
		return reply
	}

	system := e.deps.Builder.Build(state)
	if extra := e.deps.Builder.RetrievedContext(ctx, text); extra != "" {
		system += extra
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.LLMTimeout)
	defer cancel()
	replyText, err := e.deps.Completer.Complete(callCtx, system, state.ValidHistory(), e.cfg.MaxTokens)
	if err != nil {
		log.Warn("completion failed", zap.Error(err))
		state.AppendMessage(ai.RoleAssistant, Apology)
		e.deps.Tracker.Persist(ctx, state, userMsg, ai.Message{Role: ai.RoleAssistant, Content: Apology})
		return e.segment(Apology)
	}

	log.Debug("completion received",
		zap.String("preview", util.TruncateForLog(replyText, 120)))
	return e.respond(ctx, state, replyText, userMsg, log)
}

// respond appends the reply, lets the assistant detectors read it,
// persists the turn and segments the reply for delivery.
func (e *Engine) respond(ctx context.Context, state *conversation.State, replyText string, userMsg ai.Message, log *zap.Logger) *Reply {
	state.AppendMessage(ai.RoleAssistant, replyText)
	if upd := e.deps.AssistantDetectors.Run(ctx, replyText, state); state.Apply(upd) {
		log.Debug("state updated from reply",
			zap.String(logger.FieldStage, string(state.Stage)))
	}
	e.deps.Tracker.Persist(ctx, state, userMsg, ai.Message{Role: ai.RoleAssistant, Content: replyText})
	return e.segment(replyText)
}

// HandleResume processes document intake: screen, store, acknowledge with
// the role's opening question. No model call happens on this turn beyond
// the screening itself, which both saves a round-trip and guarantees the
// acknowledgment never re-asks for the resume.
func (e *Engine) HandleResume(ctx context.Context, in Inbound, resumeText string) *Reply {
	log := logger.WithConversation(e.deps.Logger, in.Key.Platform, in.Key.UserID)

	state, release := e.deps.Tracker.Begin(ctx, in.Key)
	defer release()
	snap := e.snapshot()

	var verdict *ai.ScreeningResult
	if e.deps.Screener != nil && strings.TrimSpace(resumeText) != "" {
		v, err := e.deps.Screener.Screen(ctx, resumeText, snap.ScreeningCatalog())
		if err != nil {
			log.Warn("resume screening failed, intake continues unscreened", zap.Error(err))
		} else {
			verdict = v
			log.Info("resume screened",
				zap.Float64("score", v.Score),
				zap.String("recommendation", v.Recommendation),
				zap.String("job_matched", v.JobMatched),
			)
		}
	}

	var resumeURL string
	if e.deps.Repository != nil && in.File != nil {
		url, err := e.deps.Repository.UploadResume(ctx, in.Key, in.File.Data, in.File.Filename)
		if err != nil {
			log.Warn("resume upload failed", zap.Error(err))
		} else {
			resumeURL = url
		}
	}

	upd := conversation.Update{ResumeReceived: true, Stage: conversation.StageResumeReceived}
	if verdict != nil {
		if name := strings.TrimSpace(verdict.CandidateName); name != "" && name != "Unknown" {
			upd.CandidateName = name
		}
		// The screener reports a free-text role title; map it back to a
		// catalog key before it lands in state.
		if e.deps.Matcher != nil {
			if key := e.deps.Matcher.Identify(ctx, verdict.JobMatched); key != "" {
				upd.AppliedRole = key
			}
		}
	}
	state.Apply(upd)

	if e.deps.Repository != nil {
		rec := store.NewCandidateRecord(in.Key, "", displayName(in, state), verdict, resumeURL)
		if err := e.deps.Repository.SaveCandidate(ctx, rec); err != nil {
			log.Warn("candidate record save failed", zap.Error(err))
		}
	}

	note := resumeNote(verdict)
	state.AppendMessage(ai.RoleUser, note)

	ack := snap.ResumeAck(displayName(in, state), state.AppliedRole)
	state.AppendMessage(ai.RoleAssistant, ack)
	state.Apply(conversation.Update{ExperienceDiscussed: true, Stage: conversation.StageExperienceAsked})

	e.deps.Tracker.Persist(ctx, state,
		ai.Message{Role: ai.RoleUser, Content: note},
		ai.Message{Role: ai.RoleAssistant, Content: ack},
	)
	log.Info("resume intake complete",
		zap.String("role", state.AppliedRole),
		zap.String(logger.FieldStage, string(state.Stage)),
	)
	return e.segment(ack)
}

func resumeNote(verdict *ai.ScreeningResult) string {
	note := ResumeNote
	if verdict == nil {
		return note
	}
	if verdict.JobMatched != "" {
		note += "\nMatched role: " + verdict.JobMatched
	}
	if verdict.Summary != "" {
		note += "\nScreening summary: " + verdict.Summary
	}
	return note
}

func (e *Engine) snapshot() *knowledge.Snapshot {
	return e.deps.Knowledge.Snapshot()
}

func displayName(in Inbound, state *conversation.State) string {
	if state.CandidateName != "" {
		return state.CandidateName
	}
	return strings.TrimSpace(in.DisplayName)
}

// segment splits the reply on the separator and assigns each part its
// delivery delay: a thinking component drawn from the style profile plus a
// typing component proportional to length, capped per part. Only the first
// part is threaded onto the trigger message.
func (e *Engine) segment(text string) *Reply {
	minThink, maxThink := e.snapshot().ThinkingRange()
	segments := Split(text)
	parts := make([]Part, 0, len(segments))
	for i, seg := range segments {
		thinking := time.Duration((minThink + e.randFloat()*(maxThink-minThink)) * float64(time.Second))
		delay := thinking + time.Duration(len([]rune(seg)))*e.cfg.TypingSpeed
		if delay > e.cfg.MaxPartDelay {
			delay = e.cfg.MaxPartDelay
		}
		parts = append(parts, Part{Text: seg, Delay: delay, Threaded: i == 0})
	}
	return &Reply{Parts: parts}
}
