// Package agent implements the autonomous panelist: persona identity,
// prompt assembly, and the per-agent LOADING→WARMING_UP→LISTENING⇄
// EVALUATING→GENERATING→READY→IN_EXCHANGE state machine.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lokutor-ai/boardroom-runtime/pkg/bus"
	pkgcontext "github.com/lokutor-ai/boardroom-runtime/pkg/context"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llm"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llmtext"
	"github.com/lokutor-ai/boardroom-runtime/pkg/logging"
	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
)

const (
	loadingTimeout     = 30 * time.Second
	warmupPoll         = 3 * time.Second
	readyIdleTimeout   = 120 * time.Second
	defaultRelevance   = 0.8
	evaluationTimeout  = 20 * time.Second
)

// Config is the subset of session configuration an AgentRunner needs.
type Config struct {
	WarmupWords  int
	DurationSecs float64
}

// DefaultConfig matches SPEC_FULL.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{WarmupWords: 50, DurationSecs: 1800}
}

// Runner is one autonomous panelist task. One Runner runs per active
// persona, subscribed to every session event. State transitions happen on
// its own goroutine (Run), except that the bus handler (onEvent) sets
// COOLDOWN on SESSION_ENDING; the mutex guards the fields that handler,
// Run and outside accessors like State() share.
type Runner struct {
	agentID   string
	personaID string
	intensity Intensity
	index     int
	cfg       Config

	bus       *bus.EventBus
	sessCtx   *session.SessionContext
	window    *pkgcontext.Window
	slides    []pkgcontext.Slide
	model     llm.LLM
	tts       llm.TTS
	templates *TemplateSet
	sem       *semaphore.Weighted
	log       logging.Logger

	mu               sync.Mutex
	state            RunnerState
	currentSlide     int
	wordCountTotal   int
	wordCountAtEval  int
	questionCount    int
	lastQuestionAt   time.Time
	candidate        *session.CandidateQuestion
	previousQuestions []string
	sessionStart     time.Time

	wake        chan struct{}
	calledOn    chan struct{}
	resolved    chan struct{}
	claimsReady chan struct{}
	claimsOnce  sync.Once

	done chan struct{}
}

// NewRunner constructs a panelist bound to personaID, at panel position
// index (used for stagger delay and eval-interval spacing).
func NewRunner(agentID, personaID string, intensity Intensity, index int, cfg Config,
	b *bus.EventBus, sessCtx *session.SessionContext, window *pkgcontext.Window, slides []pkgcontext.Slide,
	model llm.LLM, tts llm.TTS, templates *TemplateSet, sem *semaphore.Weighted, log logging.Logger) *Runner {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	r := &Runner{
		agentID: agentID, personaID: personaID, intensity: intensity, index: index, cfg: cfg,
		bus: b, sessCtx: sessCtx, window: window, slides: slides,
		model: model, tts: tts, templates: templates, sem: sem, log: log.With("agent_id", agentID),
		state:       StateLoading,
		wake:        make(chan struct{}, 1),
		calledOn:    make(chan struct{}, 1),
		resolved:    make(chan struct{}, 1),
		claimsReady: make(chan struct{}),
		done:        make(chan struct{}),
	}
	b.SubscribeAll(r.onEvent)
	return r
}

// State returns the runner's current position in its loop.
func (r *Runner) State() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s RunnerState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Runner) signalWake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// onEvent is the bus handler. It only updates bookkeeping fields and
// signals the run loop; all decision-making happens on Run's goroutine.
func (r *Runner) onEvent(e bus.Event) {
	switch e.Type {
	case bus.TranscriptUpdate:
		if text, ok := e.Data["text"].(string); ok {
			r.mu.Lock()
			r.wordCountTotal += countWords(text)
			r.mu.Unlock()
		}
		r.signalWake()
	case bus.SlideChanged:
		if idx, ok := e.Data["slide_index"].(int); ok {
			r.mu.Lock()
			r.currentSlide = idx
			// Per SPEC_FULL.md §4.4: a slide change drops a buffered
			// candidate only while still generating it; once queued
			// (READY) or in an exchange the candidate survives.
			if r.candidate != nil && r.state != StateReady && r.state != StateInExchange {
				r.candidate = nil
			}
			r.mu.Unlock()
		}
		r.signalWake()
	case bus.ClaimsReady:
		r.claimsOnce.Do(func() { close(r.claimsReady) })
	case bus.AgentCalledOn:
		if e.Data["agent_id"] == r.agentID {
			select {
			case r.calledOn <- struct{}{}:
			default:
			}
		}
	case bus.ExchangeResolved:
		if e.Data["agent_id"] == r.agentID {
			select {
			case r.resolved <- struct{}{}:
			default:
			}
		}
	case bus.SessionEnding:
		r.setState(StateCooldown)
		close(r.done)
	}
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// Run drives the full autonomous loop until ctx is cancelled or a
// SESSION_ENDING event lands. It is meant to run on its own goroutine.
func (r *Runner) Run(ctx context.Context) {
	r.mu.Lock()
	r.sessionStart = time.Now()
	r.mu.Unlock()

	if !r.runLoading(ctx) {
		return
	}
	if !r.runWarmingUp(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		asked := r.runListeningAndEvaluate(ctx)
		if !asked {
			continue
		}
		if !r.runGenerating(ctx) {
			continue
		}
		if !r.runReady(ctx) {
			continue
		}
		r.runInExchange(ctx)
	}
}

func (r *Runner) runLoading(ctx context.Context) bool {
	r.setState(StateLoading)
	if _, err := LoadTemplates(""); err != nil {
		r.log.Warn("template preload failed: %v", err)
	}

	timer := time.NewTimer(loadingTimeout)
	defer timer.Stop()
	select {
	case <-r.claimsReady:
	case <-timer.C:
		r.log.Warn("loading: timed out waiting for claims")
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}

	claimCount := 0
	for _, claims := range r.sessCtx.AllClaimCounts() {
		claimCount += claims
	}
	r.log.Info("agent_loaded claim_count=%d", claimCount)
	return true
}

func (r *Runner) runWarmingUp(ctx context.Context) bool {
	r.setState(StateWarmingUp)

	stagger := time.Duration(5)*time.Second + time.Duration(evalIntervalFor(r.index)/2)*time.Second
	t := time.NewTimer(stagger)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}

	ticker := time.NewTicker(warmupPoll)
	defer ticker.Stop()
	for {
		r.mu.Lock()
		words := r.wordCountTotal
		r.mu.Unlock()
		if words >= r.cfg.WarmupWords {
			return true
		}
		select {
		case <-ticker.C:
		case <-r.wake:
		case <-ctx.Done():
			return false
		case <-r.done:
			return false
		}
	}
}

// runListeningAndEvaluate blocks in LISTENING until either a periodic
// tick or a new input event triggers EVALUATING, returning true only
// when should_ask fires (leaving GENERATING's candidate work for the
// caller).
func (r *Runner) runListeningAndEvaluate(ctx context.Context) bool {
	r.setState(StateListening)
	interval := time.Duration(evalIntervalFor(r.index)) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-r.wake:
		case <-ctx.Done():
			return false
		case <-r.done:
			return false
		}

		r.setState(StateEvaluating)
		fire, reason := r.evaluate()
		if fire {
			r.log.Debug("should_ask fired: reason=%s", reason)
			return true
		}
		r.setState(StateListening)
	}
}

func (r *Runner) evaluate() (bool, TriggerReason) {
	r.mu.Lock()
	growth := r.wordCountTotal - r.wordCountAtEval
	r.wordCountAtEval = r.wordCountTotal
	slideIdx := r.currentSlide
	hasAsked := r.questionCount > 0
	var secsSinceLast float64
	if !r.lastQuestionAt.IsZero() {
		secsSinceLast = time.Since(r.lastQuestionAt).Seconds()
	}
	elapsed := time.Since(r.sessionStart).Seconds()
	r.mu.Unlock()

	unchallenged := r.sessCtx.UnchallengedClaims(slideIdx, r.sessCtx.GetAgentContext(r.agentID))

	return shouldAsk(shouldAskParams{
		IsFirstQuestion:          !hasAsked,
		TranscriptGrowth:         growth,
		UnchallengedClaimCount:   len(unchallenged),
		ElapsedSecs:              elapsed,
		DurationSecs:             r.cfg.DurationSecs,
		SecondsSinceLastQuestion: secsSinceLast,
		HasAskedBefore:           hasAsked,
	})
}

// runGenerating assembles the prompt, calls the LLM (streaming,
// sentence-by-sentence TTS), and produces a CandidateQuestion. Returns
// false (falling back to LISTENING) if the prompt cannot be built or the
// slide changed out from under the candidate mid-generation.
func (r *Runner) runGenerating(ctx context.Context) bool {
	r.setState(StateGenerating)

	r.mu.Lock()
	slideIdx := r.currentSlide
	r.mu.Unlock()

	agentCtx := r.sessCtx.GetAgentContext(r.agentID)
	unchallenged := r.sessCtx.UnchallengedClaims(slideIdx, agentCtx)
	targetClaim := ""
	if len(unchallenged) > 0 {
		targetClaim = unchallenged[0].Text
	}

	windowCtx := r.window.ContextForAgent(slideIdx, r.slides, time.Since(r.sessionStart).Seconds())

	r.mu.Lock()
	prevQuestions := append([]string(nil), r.previousQuestions...)
	qCount := r.questionCount
	r.mu.Unlock()

	profile := agentCtx.Profile()
	prompt, err := BuildQuestionPrompt(r.templates, QuestionPromptInput{
		PersonaID:           r.personaID,
		Intensity:           r.intensity,
		SlideIndex:          slideIdx,
		TotalSlides:         len(r.slides),
		SlideTitle:          windowCtx.CurrentSlideTitle,
		SlideContent:        windowCtx.CurrentSlideText,
		SlideNotes:          windowCtx.CurrentSlideNotes,
		CurrentSlideSpeech:  windowCtx.CurrentSlideSpeech,
		AllSlidesContext:    windowCtx.AllSlidesContext,
		Transcript:          windowCtx.TranscriptText,
		PresentationSummary: windowCtx.PresentationSummary,
		KeyClaims:           windowCtx.KeyClaims,
		PreviousQuestions:   prevQuestions,
		PresenterProfile:    profile.ToText(),
		TargetClaim:         targetClaim,
		ElapsedSeconds:      windowCtx.ElapsedSeconds,
	})
	if err != nil {
		r.log.Error("prompt build failed: %v", err)
		return false
	}

	text, audioURL, audioURLs, err := r.generateAndSynthesize(ctx, prompt)
	if err != nil {
		r.log.Warn("question generation failed, using fallback: %v", err)
		text = FallbackQuestion(r.personaID, qCount)
	}

	r.mu.Lock()
	if r.currentSlide != slideIdx {
		// slide moved on while we were still composing the question
		r.mu.Unlock()
		return false
	}
	r.candidate = &session.CandidateQuestion{
		AgentID:        r.agentID,
		Text:           text,
		TargetClaim:    targetClaim,
		SlideIndex:     slideIdx,
		AudioURL:       audioURL,
		AudioURLs:      audioURLs,
		RelevanceScore: defaultRelevance,
	}
	r.previousQuestions = append(r.previousQuestions, text)
	r.mu.Unlock()

	return true
}

// generateAndSynthesize streams the LLM's answer, splitting it into
// sentences as they complete and firing TTS per sentence concurrently.
// The returned audioURLs are in sentence order; audioURL is the first
// sentence's, which defines latency-to-speak.
func (r *Runner) generateAndSynthesize(ctx context.Context, prompt string) (text, audioURL string, audioURLs []string, err error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", "", nil, err
	}
	defer r.sem.Release(1)

	tokens, errCh := r.model.GenerateQuestionStreaming(ctx, prompt, []llm.Message{})

	var sentences []string
	var wg sync.WaitGroup
	var synthMu sync.Mutex
	synthesized := make(map[int]string)

	extractor := &llmtext.Extractor{}
	fireTTS := func(idx int, sentence string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, serr := r.tts.Synthesize(ctx, r.agentID, sentence, r.sessCtx.SessionID)
			if serr != nil {
				r.log.Warn("tts synthesis failed for sentence %d: %v", idx, serr)
				return
			}
			synthMu.Lock()
			synthesized[idx] = url
			synthMu.Unlock()
		}()
	}

	var streamErr error
tokenLoop:
	for {
		select {
		case tok, ok := <-tokens:
			if !ok {
				break tokenLoop
			}
			if sentence, complete := extractor.Feed(tok); complete {
				sentences = append(sentences, sentence)
				fireTTS(len(sentences)-1, sentence)
			}
		case e, ok := <-errCh:
			if ok && e != nil {
				streamErr = e
			}
		case <-ctx.Done():
			streamErr = ctx.Err()
			break tokenLoop
		}
	}
	if streamErr == nil {
		// tokens may close before the loop reads a buffered stream error
		select {
		case e := <-errCh:
			streamErr = e
		default:
		}
	}
	if rest := extractor.Flush(); rest != "" {
		sentences = append(sentences, rest)
		fireTTS(len(sentences)-1, rest)
	}
	if streamErr != nil && len(sentences) == 0 {
		return "", "", nil, streamErr
	}

	wg.Wait()
	audioURLs = make([]string, len(sentences))
	for i := range sentences {
		audioURLs[i] = synthesized[i]
	}
	if len(audioURLs) > 0 {
		audioURL = audioURLs[0]
	}
	return strings.Join(sentences, " "), audioURL, audioURLs, nil
}

// runReady publishes HAND_RAISED and waits idly (excluding time spent
// while another exchange is in progress) up to 120s for AGENT_CALLED_ON.
// Returns true only when called on; false on HAND_LOWERED timeout.
func (r *Runner) runReady(ctx context.Context) bool {
	r.setState(StateReady)

	r.mu.Lock()
	cand := r.candidate
	r.mu.Unlock()
	if cand == nil {
		return false
	}

	r.bus.Publish(bus.Event{
		Type:      bus.HandRaised,
		Timestamp: time.Now(),
		Source:    r.agentID,
		Data: map[string]any{
			"agent_id":        r.agentID,
			"text":            cand.Text,
			"target_claim":    cand.TargetClaim,
			"slide_index":     cand.SlideIndex,
			"relevance_score": cand.RelevanceScore,
		},
	})

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	var idle time.Duration

	for idle < readyIdleTimeout {
		select {
		case <-r.calledOn:
			return true
		case <-tick.C:
			if r.sessCtx.State() != session.StateExchange {
				idle += time.Second
			}
		case <-ctx.Done():
			return false
		case <-r.done:
			return false
		}
	}

	r.bus.Publish(bus.Event{
		Type: bus.HandLowered, Timestamp: time.Now(), Source: r.agentID,
		Data: map[string]any{"agent_id": r.agentID},
	})
	r.mu.Lock()
	r.candidate = nil
	r.mu.Unlock()
	return false
}

// runInExchange waits for EXCHANGE_RESOLVED addressed to this agent.
// Delivery of the question itself is the Coordinator's job.
func (r *Runner) runInExchange(ctx context.Context) {
	r.setState(StateInExchange)

	r.mu.Lock()
	r.questionCount++
	r.lastQuestionAt = time.Now()
	r.candidate = nil
	r.mu.Unlock()

	select {
	case <-r.resolved:
	case <-ctx.Done():
	case <-r.done:
	}
}

// HandleExchangeFollowUp is called synchronously by the Coordinator
// during this agent's active exchange to decide whether another turn is
// warranted. Returns (nil, nil) when the agent is satisfied, treating
// LLM failure and any timeout as satisfied per SPEC_FULL.md §4.4.
func (r *Runner) HandleExchangeFollowUp(ctx context.Context, ex *session.Exchange, maxTurns int) (*FollowUp, error) {
	history := formatExchangeTurns(ex)
	prompt, err := BuildEvaluationPrompt(r.templates, EvaluationPromptInput{
		PersonaID:       r.personaID,
		QuestionText:    ex.QuestionText,
		ExchangeHistory: history,
		TurnNumber:      ex.TurnCount(),
		MaxTurns:        maxTurns,
	})
	if err != nil {
		return nil, nil
	}

	evalCtx, cancel := context.WithTimeout(ctx, evaluationTimeout)
	defer cancel()

	if err := r.sem.Acquire(evalCtx, 1); err != nil {
		return nil, nil // timeout/ctx cancellation treated as satisfied
	}
	defer r.sem.Release(1)

	verdict, err := r.model.EvaluateResponse(evalCtx, prompt, history)
	if err != nil {
		return nil, nil
	}

	switch verdict.Verdict {
	case llm.VerdictFollowUp, llm.VerdictEscalate:
		if strings.TrimSpace(verdict.FollowUp) == "" {
			return nil, nil
		}
		return &FollowUp{Text: verdict.FollowUp, Reasoning: verdict.Reasoning}, nil
	default:
		return nil, nil
	}
}

// FollowUp is the non-nil result of HandleExchangeFollowUp: a further
// question the Coordinator should deliver within the same exchange.
type FollowUp struct {
	Text      string
	Reasoning string
}

func formatExchangeTurns(ex *session.Exchange) string {
	var b strings.Builder
	for _, t := range ex.Turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Speaker, t.Text)
	}
	return b.String()
}
