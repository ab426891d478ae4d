package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lokutor-ai/boardroom-runtime/pkg/agent"
	"github.com/lokutor-ai/boardroom-runtime/pkg/bus"
	pkgcontext "github.com/lokutor-ai/boardroom-runtime/pkg/context"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llm"
	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
)

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSink) Emit(ctx context.Context, name string, payload map[string]any) error {
	f.mu.Lock()
	f.events = append(f.events, name)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == name {
			return true
		}
	}
	return false
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, agentID, text, sessionID string) (string, error) {
	return "https://tts.example/" + agentID, nil
}

type verdictLLM struct{ verdict llm.Verdict }

func (v verdictLLM) GenerateQuestion(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	return "", nil
}
func (v verdictLLM) GenerateQuestionStreaming(ctx context.Context, systemPrompt string, messages []llm.Message) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errCh := make(chan error)
	close(tokens)
	close(errCh)
	return tokens, errCh
}
func (v verdictLLM) EvaluateResponse(ctx context.Context, systemPrompt, exchangeText string) (llm.Verdict, error) {
	return v.verdict, nil
}
func (v verdictLLM) GenerateDebrief(ctx context.Context, systemPrompt string, sessionData map[string]any, maxTokens int) (string, error) {
	return "", nil
}

func newTestRunner(t *testing.T, agentID, personaID string, verdict llm.Verdict, b *bus.EventBus, sessCtx *session.SessionContext) *agent.Runner {
	t.Helper()
	templates, err := agent.LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	window := pkgcontext.New()
	slides := []pkgcontext.Slide{{Title: "Slide"}}
	sem := semaphore.NewWeighted(2)
	return agent.NewRunner(agentID, personaID, agent.IntensityModerate, 0, agent.DefaultConfig(),
		b, sessCtx, window, slides, verdictLLM{verdict: verdict}, fakeTTS{}, templates, sem, nil)
}

func TestQueueSelectSingleEntryTakesIt(t *testing.T) {
	q := NewHandRaiseQueue()
	q.Add("a1", session.CandidateQuestion{RelevanceScore: 0.5}, time.Now())
	winner, ok := q.Select(time.Now(), func(string) int { return 0 })
	if !ok || winner.AgentID != "a1" {
		t.Fatalf("expected a1 selected, got %+v ok=%v", winner, ok)
	}
	if q.Len() != 0 {
		t.Fatal("expected queue drained after selection")
	}
}

func TestQueueSelectScoresFairnessAndRelevance(t *testing.T) {
	q := NewHandRaiseQueue()
	now := time.Now()
	q.Add("veteran", session.CandidateQuestion{RelevanceScore: 0.9}, now)
	q.Add("newcomer", session.CandidateQuestion{RelevanceScore: 0.8}, now)

	totals := map[string]int{"veteran": 10, "newcomer": 0}
	winner, ok := q.Select(now, func(id string) int { return totals[id] })
	if !ok || winner.AgentID != "newcomer" {
		t.Fatalf("expected fairness penalty to favor newcomer, got %+v", winner)
	}
}

func TestQueueAddRejectsDuplicate(t *testing.T) {
	q := NewHandRaiseQueue()
	if !q.Add("a1", session.CandidateQuestion{}, time.Now()) {
		t.Fatal("expected first add to succeed")
	}
	if q.Add("a1", session.CandidateQuestion{}, time.Now()) {
		t.Fatal("expected duplicate add to be rejected")
	}
}

func TestCallOnAgentOpensExchangeAndPublishesEvents(t *testing.T) {
	b := bus.New(nil)
	sessCtx := session.New("sess-1")
	sink := &fakeSink{}
	runner := newTestRunner(t, "skeptic", "skeptic", llm.Verdict{Verdict: llm.VerdictSatisfied}, b, sessCtx)
	c := New("sess-1", b, sessCtx, fakeTTS{}, sink, nil,
		map[string]*agent.Runner{"skeptic": runner}, map[string]agent.Intensity{"skeptic": agent.IntensityModerate},
		Config{DurationSecs: 1000}, nil)

	var calledOn, exchangeStarted bool
	var wg sync.WaitGroup
	wg.Add(2)
	b.Subscribe(bus.AgentCalledOn, func(e bus.Event) { calledOn = true; wg.Done() })
	b.Subscribe(bus.ExchangeStarted, func(e bus.Event) { exchangeStarted = true; wg.Done() })

	c.callOnAgent(context.Background(), queueEntry{
		AgentID: "skeptic", Candidate: session.CandidateQuestion{Text: "why?"}, RaisedAt: time.Now(),
	})

	wg.Wait()
	if !calledOn || !exchangeStarted {
		t.Fatalf("expected both AGENT_CALLED_ON and EXCHANGE_STARTED, got calledOn=%v exchangeStarted=%v", calledOn, exchangeStarted)
	}
	if sessCtx.State() != session.StateExchange {
		t.Fatalf("expected session state EXCHANGE, got %s", sessCtx.State())
	}
	if sessCtx.ActiveExchange() == nil || sessCtx.ActiveExchange().QuestionText != "why?" {
		t.Fatal("expected active exchange with the candidate's question text")
	}
}

func TestResolveExchangeUpdatesProfileOnSatisfied(t *testing.T) {
	b := bus.New(nil)
	sessCtx := session.New("sess-1")
	c := New("sess-1", b, sessCtx, fakeTTS{}, nil, nil, nil, nil, Config{}, nil)

	ex := &session.Exchange{ID: "ex1", AgentID: "skeptic", QuestionText: "why?", StartedAt: time.Now(),
		Turns: []session.ExchangeTurn{{Speaker: session.SpeakerAgent, Text: "why?"}}}
	sessCtx.BeginExchange(ex)
	c.active = ex

	var resolved bool
	var wg sync.WaitGroup
	wg.Add(1)
	b.Subscribe(bus.ExchangeResolved, func(e bus.Event) { resolved = true; wg.Done() })

	c.resolveExchange(ex, session.OutcomeSatisfied)
	wg.Wait()

	if !resolved {
		t.Fatal("expected EXCHANGE_RESOLVED published")
	}
	profile := sessCtx.GetAgentContext("skeptic").Profile()
	if profile.DataReadiness != session.DataReadinessStrong {
		t.Fatalf("expected strong data readiness for a single-turn SATISFIED, got %s", profile.DataReadiness)
	}
	if sessCtx.State() != session.StatePresenting {
		t.Fatalf("expected state back to PRESENTING, got %s", sessCtx.State())
	}
}

func TestResolveExchangeTurnLimitMarksWeakReadiness(t *testing.T) {
	b := bus.New(nil)
	sessCtx := session.New("sess-1")
	c := New("sess-1", b, sessCtx, fakeTTS{}, nil, nil, nil, nil, Config{}, nil)

	ex := &session.Exchange{ID: "ex1", AgentID: "skeptic", QuestionText: "can you justify the revenue projection in detail?",
		Turns: []session.ExchangeTurn{{Speaker: session.SpeakerAgent}, {Speaker: session.SpeakerPresenter}, {Speaker: session.SpeakerPresenter}}}
	sessCtx.BeginExchange(ex)
	c.active = ex

	c.resolveExchange(ex, session.OutcomeTurnLimit)

	profile := sessCtx.GetAgentContext("skeptic").Profile()
	if profile.DataReadiness != session.DataReadinessWeak {
		t.Fatalf("expected weak data readiness on TURN_LIMIT, got %s", profile.DataReadiness)
	}
	if len(profile.BehavioralNotes) == 0 {
		t.Fatal("expected a behavioral note recorded for TURN_LIMIT")
	}
}

func TestDebounceRecordsPresenterTurnAndResolvesOnSatisfiedAssessment(t *testing.T) {
	b := bus.New(nil)
	sessCtx := session.New("sess-1")
	runner := newTestRunner(t, "skeptic", "skeptic", llm.Verdict{Verdict: llm.VerdictSatisfied}, b, sessCtx)
	c := New("sess-1", b, sessCtx, fakeTTS{}, nil, nil,
		map[string]*agent.Runner{"skeptic": runner}, map[string]agent.Intensity{"skeptic": agent.IntensityFriendly}, // max turns 2
		Config{}, nil)

	ex := &session.Exchange{ID: "ex1", AgentID: "skeptic", QuestionText: "why?",
		Turns: []session.ExchangeTurn{{Speaker: session.SpeakerAgent, Text: "why?"}}}
	sessCtx.BeginExchange(ex)
	c.active = ex
	c.resetExchangeTimerLocked()

	var resolved bool
	var wg sync.WaitGroup
	wg.Add(1)
	b.Subscribe(bus.ExchangeResolved, func(e bus.Event) { resolved = true; wg.Done() })

	// First presenter turn (under the friendly 2-turn budget): goes
	// through the follow-up assessment path, not a direct resolution.
	c.onPresenterTurnRecorded(ex, "because the market is growing steadily this quarter")
	if ex.PresenterTurnCount() != 1 {
		t.Fatalf("expected 1 presenter turn recorded, got %d", ex.PresenterTurnCount())
	}

	// give the async assessment goroutine (SATISFIED verdict) time to resolve
	deadline := time.After(time.Second)
	for sessCtx.ActiveExchange() != nil {
		select {
		case <-deadline:
			t.Fatal("expected exchange to resolve after SATISFIED follow-up assessment")
		case <-time.After(time.Millisecond):
		}
	}
	wg.Wait()
	if !resolved {
		t.Fatal("expected EXCHANGE_RESOLVED published")
	}
}

func TestPhraseLibraryRoundRobinsTransitions(t *testing.T) {
	p := newPhraseLibrary()
	first := p.nextTransition()
	second := p.nextTransition()
	third := p.nextTransition()
	if first == second && second == third {
		t.Fatal("expected round-robin to vary across three consecutive calls given more than one phrase")
	}
}

func TestPhraseLibraryBridgeBackFallsBackToDefault(t *testing.T) {
	p := newPhraseLibrary()
	p.bridgeBack = nil
	if got := p.nextBridgeBack(session.OutcomeSatisfied); got != defaultBridgeBack {
		t.Fatalf("expected default bridge-back phrase, got %q", got)
	}
}
