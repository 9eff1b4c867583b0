package conversation

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/hirelinehq/hireline/internal/knowledge"
)

func testKnowledgeStore(t *testing.T) *knowledge.Store {
	t.Helper()
	store, err := knowledge.New(zap.NewNop())
	if err != nil {
		t.Fatalf("knowledge.New: %v", err)
	}
	return store
}

func TestFormCompletionDetector(t *testing.T) {
	cases := []struct {
		name      string
		text      string
		completed bool
		wantFire  bool
	}{
		{name: "plain done", text: "done", wantFire: true},
		{name: "sentence", text: "i have completed the form", wantFire: true},
		{name: "uppercase", text: "DONE!", wantFire: true},
		{name: "submitted", text: "just submitted it", wantFire: true},
		{name: "already filled", text: "already filled it up yesterday", wantFire: true},
		{name: "unrelated", text: "what's the pay like?", wantFire: false},
		{name: "gated when already completed", text: "done", completed: true, wantFire: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			state := NewState(Key{Platform: PlatformTelegram, UserID: "1"})
			state.FormCompleted = c.completed
			upd := formCompletionDetector{}.Detect(context.Background(), c.text, state)
			fired := !upd.IsZero()
			if fired != c.wantFire {
				t.Fatalf("fired=%v want %v (upd=%+v)", fired, c.wantFire, upd)
			}
			if fired && (upd.Stage != StageFormCompleted || !upd.FormCompleted) {
				t.Fatalf("wrong update: %+v", upd)
			}
		})
	}
}

func TestCitizenshipDetector(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Citizenship
	}{
		{name: "singapore citizen", text: "i'm a Singapore Citizen", want: CitizenshipSC},
		{name: "singaporean", text: "yes im singaporean", want: CitizenshipSC},
		{name: "bare citizen", text: "citizen here", want: CitizenshipSC},
		{name: "permanent resident", text: "i am a permanent resident", want: CitizenshipPR},
		{name: "pr abbreviation", text: "im a pr", want: CitizenshipPR},
		{name: "work permit", text: "on a work permit now", want: CitizenshipForeign},
		{name: "s pass", text: "holding an s pass", want: CitizenshipForeign},
		{name: "ep holder", text: "im an ep holder", want: CitizenshipForeign},
		{name: "no mention", text: "how much is the pay?", want: CitizenshipUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			upd := citizenshipDetector{}.Detect(context.Background(), c.text, NewState(Key{}))
			if upd.Citizenship != c.want {
				t.Fatalf("citizenship=%q want %q", upd.Citizenship, c.want)
			}
		})
	}
}

func TestSchedulingDetectorGatedOnExperience(t *testing.T) {
	state := NewState(Key{Platform: PlatformTelegram, UserID: "5"})

	upd := schedulingDetector{}.Detect(context.Background(), "2pm works for me", state)
	if !upd.IsZero() {
		t.Fatalf("must not fire before experience is discussed: %+v", upd)
	}

	state.ExperienceDiscussed = true
	upd = schedulingDetector{}.Detect(context.Background(), "2pm works for me", state)
	if !upd.CallScheduled || upd.Stage != StageCallScheduling {
		t.Fatalf("expected scheduling update, got %+v", upd)
	}

	upd = schedulingDetector{}.Detect(context.Background(), "im free on friday", state)
	if !upd.CallScheduled {
		t.Fatalf("'free on' should fire: %+v", upd)
	}
}

func TestRoleInterestDetector(t *testing.T) {
	store := testKnowledgeStore(t)
	matcher := knowledge.NewMatcher(store, nil, zap.NewNop())

	upd := roleInterestDetector{matcher: matcher}.Detect(context.Background(), "any warehouse jobs?", NewState(Key{}))
	if upd.AppliedRole != "warehouse_packer" {
		t.Fatalf("role not detected: %+v", upd)
	}

	upd = roleInterestDetector{matcher: matcher}.Detect(context.Background(), "hello", NewState(Key{}))
	if !upd.IsZero() {
		t.Fatalf("should not fire without a keyword: %+v", upd)
	}

	upd = roleInterestDetector{}.Detect(context.Background(), "warehouse", NewState(Key{}))
	if !upd.IsZero() {
		t.Fatal("nil matcher must be a silent no-op")
	}
}

func TestAssistantDetectors(t *testing.T) {
	store := testKnowledgeStore(t)
	formURL := store.Snapshot().Company.FormURL

	cases := []struct {
		name  string
		reply string
		setup func(*State)
		want  Update
	}{
		{
			name:  "form url sets form_sent",
			reply: "here u go: " + formURL,
			want:  Update{Stage: StageFormSent},
		},
		{
			name:  "application form phrase sets form_sent",
			reply: "could u fill in the application form first?",
			want:  Update{Stage: StageFormSent},
		},
		{
			name:  "resume request gated on form",
			reply: "could u send me ur resume?",
			want:  Update{},
		},
		{
			name:  "resume request after form completion",
			reply: "could u send me ur resume?",
			setup: func(s *State) { s.FormCompleted = true },
			want:  Update{Stage: StageResumeRequested},
		},
		{
			name:  "experience gated on resume",
			reply: "what experience do u have?",
			want:  Update{},
		},
		{
			name:  "experience after resume",
			reply: "what experience do u have?",
			setup: func(s *State) { s.ResumeReceived = true },
			want:  Update{ExperienceDiscussed: true, Stage: StageExperienceAsked},
		},
		{
			name:  "closing phrase",
			reply: "ok! will contact u if shortlisted",
			want:  Update{Stage: StageClosed},
		},
	}

	chain := NewAssistantChain(store, zap.NewNop())
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			state := NewState(Key{Platform: PlatformTelegram, UserID: "8"})
			if c.setup != nil {
				c.setup(state)
			}
			got := chain.Run(context.Background(), c.reply, state)
			if got != c.want {
				t.Fatalf("update=%+v want %+v", got, c.want)
			}
		})
	}
}

func TestUserChainMergesMultipleDetections(t *testing.T) {
	store := testKnowledgeStore(t)
	matcher := knowledge.NewMatcher(store, nil, zap.NewNop())
	chain := NewUserChain(matcher, zap.NewNop())

	state := NewState(Key{Platform: PlatformTelegram, UserID: "6"})
	upd := chain.Run(context.Background(), "done with the form, im singaporean, keen on the warehouse role", state)

	if !upd.FormCompleted || upd.Stage != StageFormCompleted {
		t.Fatalf("form detection lost: %+v", upd)
	}
	if upd.AppliedRole != "warehouse_packer" {
		t.Fatalf("role detection lost: %+v", upd)
	}
	if upd.Citizenship != CitizenshipSC {
		t.Fatalf("citizenship detection lost: %+v", upd)
	}
}

type panickyDetector struct{}

func (panickyDetector) Name() string { return "panicky" }

func (panickyDetector) Detect(context.Context, string, *State) Update {
	panic("boom")
}

func TestChainRecoversDetectorPanic(t *testing.T) {
	chain := &Chain{
		logger:    zap.NewNop(),
		detectors: []Detector{panickyDetector{}, citizenshipDetector{}},
	}
	state := NewState(Key{Platform: PlatformTelegram, UserID: "2"})

	upd := chain.Run(context.Background(), "im a pr btw", state)
	if upd.Citizenship != CitizenshipPR {
		t.Fatalf("surviving detectors must still run: %+v", upd)
	}
}
