package agent

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lokutor-ai/boardroom-runtime/pkg/bus"
	pkgcontext "github.com/lokutor-ai/boardroom-runtime/pkg/context"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llm"
	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
)

type fakeStreamingLLM struct {
	tokens []string
	err    error
}

func (f *fakeStreamingLLM) GenerateQuestion(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	return "fallback not used here", nil
}

func (f *fakeStreamingLLM) GenerateQuestionStreaming(ctx context.Context, systemPrompt string, messages []llm.Message) (<-chan string, <-chan error) {
	tokens := make(chan string, len(f.tokens))
	errCh := make(chan error, 1)
	for _, t := range f.tokens {
		tokens <- t
	}
	close(tokens)
	if f.err != nil {
		errCh <- f.err
	}
	close(errCh)
	return tokens, errCh
}

func (f *fakeStreamingLLM) EvaluateResponse(ctx context.Context, systemPrompt, exchangeText string) (llm.Verdict, error) {
	return llm.Verdict{Verdict: llm.VerdictSatisfied}, nil
}

func (f *fakeStreamingLLM) GenerateDebrief(ctx context.Context, systemPrompt string, sessionData map[string]any, maxTokens int) (string, error) {
	return "", nil
}

type fakeTTS struct{ calls int }

func (f *fakeTTS) Synthesize(ctx context.Context, agentID, text, sessionID string) (string, error) {
	f.calls++
	return "https://tts.example/" + agentID, nil
}

func newTestRunner(t *testing.T, model llm.LLM, tts llm.TTS) *Runner {
	t.Helper()
	templates, err := LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	b := bus.New(nil)
	sessCtx := session.New("sess-1")
	window := pkgcontext.New()
	slides := []pkgcontext.Slide{{Title: "Q3 Revenue", Body: "revenue grew"}}
	sem := semaphore.NewWeighted(2)
	return NewRunner("agent-1", "skeptic", IntensityModerate, 0, DefaultConfig(),
		b, sessCtx, window, slides, model, tts, templates, sem, nil)
}

func TestNewRunnerStartsInLoading(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	if r.State() != StateLoading {
		t.Fatalf("expected initial state LOADING, got %s", r.State())
	}
}

func TestOnEventTranscriptUpdateAccumulatesWords(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	r.onEvent(bus.Event{Type: bus.TranscriptUpdate, Data: map[string]any{"text": "one two three"}})
	r.mu.Lock()
	got := r.wordCountTotal
	r.mu.Unlock()
	if got != 3 {
		t.Fatalf("expected word count 3, got %d", got)
	}
}

func TestOnEventSlideChangedDropsCandidateWhileGenerating(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	r.setState(StateGenerating)
	r.mu.Lock()
	r.candidate = &session.CandidateQuestion{Text: "stale question"}
	r.mu.Unlock()

	r.onEvent(bus.Event{Type: bus.SlideChanged, Data: map[string]any{"slide_index": 1}})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.candidate != nil {
		t.Fatal("expected candidate dropped on slide change while generating")
	}
	if r.currentSlide != 1 {
		t.Fatalf("expected current slide updated to 1, got %d", r.currentSlide)
	}
}

func TestOnEventSlideChangedPreservesCandidateWhenReady(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	r.setState(StateReady)
	r.mu.Lock()
	r.candidate = &session.CandidateQuestion{Text: "still valid question"}
	r.mu.Unlock()

	r.onEvent(bus.Event{Type: bus.SlideChanged, Data: map[string]any{"slide_index": 2}})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.candidate == nil {
		t.Fatal("expected candidate preserved once queued (READY)")
	}
}

func TestOnEventAgentCalledOnOnlySignalsMatchingAgent(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	r.onEvent(bus.Event{Type: bus.AgentCalledOn, Data: map[string]any{"agent_id": "someone-else"}})
	select {
	case <-r.calledOn:
		t.Fatal("expected no signal for a different agent_id")
	default:
	}

	r.onEvent(bus.Event{Type: bus.AgentCalledOn, Data: map[string]any{"agent_id": "agent-1"}})
	select {
	case <-r.calledOn:
	default:
		t.Fatal("expected signal for matching agent_id")
	}
}

func TestRunGeneratingProducesCandidateWithAudio(t *testing.T) {
	model := &fakeStreamingLLM{tokens: []string{"Revenue will grow fast. ", "Thanks."}}
	tts := &fakeTTS{}
	r := newTestRunner(t, model, tts)

	ok := r.runGenerating(context.Background())
	if !ok {
		t.Fatal("expected runGenerating to succeed")
	}

	r.mu.Lock()
	cand := r.candidate
	r.mu.Unlock()
	if cand == nil {
		t.Fatal("expected a candidate question to be set")
	}
	if cand.AudioURL == "" {
		t.Error("expected first-sentence audio URL to be set")
	}
	if len(cand.AudioURLs) == 0 {
		t.Error("expected per-sentence audio URLs to be recorded")
	}
	if cand.RelevanceScore != defaultRelevance {
		t.Errorf("expected default relevance score %v, got %v", defaultRelevance, cand.RelevanceScore)
	}
}

func TestRunGeneratingFallsBackOnLLMFailure(t *testing.T) {
	model := &fakeStreamingLLM{err: errStreamFailed}
	tts := &fakeTTS{}
	r := newTestRunner(t, model, tts)

	ok := r.runGenerating(context.Background())
	if !ok {
		t.Fatal("expected runGenerating to still succeed via fallback")
	}
	r.mu.Lock()
	cand := r.candidate
	r.mu.Unlock()
	if cand == nil || cand.Text == "" {
		t.Fatal("expected a fallback candidate question")
	}
}

func TestRunReadyPublishesHandRaisedAndReturnsOnCalledOn(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	r.mu.Lock()
	r.candidate = &session.CandidateQuestion{AgentID: "agent-1", Text: "why?"}
	r.mu.Unlock()

	raised := make(chan struct{}, 1)
	r.bus.Subscribe(bus.HandRaised, func(e bus.Event) {
		select {
		case raised <- struct{}{}:
		default:
		}
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.calledOn <- struct{}{}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !r.runReady(ctx) {
		t.Fatal("expected runReady to return true when called on")
	}

	select {
	case <-raised:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected HAND_RAISED to be published")
	}
}

func TestHandleExchangeFollowUpSatisfiedReturnsNil(t *testing.T) {
	r := newTestRunner(t, &fakeStreamingLLM{}, &fakeTTS{})
	ex := &session.Exchange{QuestionText: "why?", Turns: []session.ExchangeTurn{
		{Speaker: session.SpeakerAgent, Text: "why?"},
		{Speaker: session.SpeakerPresenter, Text: "because of X"},
	}}
	fu, err := r.HandleExchangeFollowUp(context.Background(), ex, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fu != nil {
		t.Fatalf("expected nil follow-up on SATISFIED verdict, got %+v", fu)
	}
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

const errStreamFailed = stubErr("stream failed")
