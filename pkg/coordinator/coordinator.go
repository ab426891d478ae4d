// Package coordinator implements the moderator: hand-raise selection,
// the exchange state machine, presenter-response debouncing, and
// presenter-profile updates at resolution.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/boardroom-runtime/pkg/agent"
	"github.com/lokutor-ai/boardroom-runtime/pkg/bus"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llm"
	"github.com/lokutor-ai/boardroom-runtime/pkg/logging"
	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
)

const (
	moderatorTick          = 2 * time.Second
	postResolutionCooldown = 5 * time.Second
	exchangeTimeout        = 45 * time.Second
	responseDebounce       = 3 * time.Second
	minResponseWords       = 5
	followUpEvalTimeout    = 20 * time.Second
)

// Config is the subset of session configuration the Coordinator needs.
// Per-agent max-turns budgets are derived from each agent's intensity
// via agent.Intensity.MaxTurns, not configured directly here.
type Config struct {
	DurationSecs float64
}

// Coordinator owns the hand-raise queue, moderator speech, and every
// active_exchange transition. Single-writer discipline: only this type's
// own goroutines (Run's moderator loop, and the bus handlers it
// registers) ever mutate queue/exchange/debounce state.
type Coordinator struct {
	sessionID string
	bus       *bus.EventBus
	sessCtx   *session.SessionContext
	tts       llm.TTS
	sink      llm.Sink
	store     llm.Store
	runners   map[string]*agent.Runner
	intensity map[string]agent.Intensity
	cfg       Config
	log       logging.Logger

	queue    *HandRaiseQueue
	phrases  *phraseLibrary
	start    time.Time
	warned80 bool
	warned90 bool

	mu             sync.Mutex
	lastResolvedAt time.Time

	exMu          sync.Mutex
	active        *session.Exchange
	exTimer       *time.Timer
	debounceBuf   strings.Builder
	debounceTimer *time.Timer
	assessing     bool

	done chan struct{}
}

// New constructs a Coordinator for one session. runners and intensity
// are keyed by agent ID; intensity determines each exchange's max-turns
// budget via agent.Intensity.MaxTurns.
func New(sessionID string, b *bus.EventBus, sessCtx *session.SessionContext, tts llm.TTS, sink llm.Sink, store llm.Store,
	runners map[string]*agent.Runner, intensity map[string]agent.Intensity, cfg Config, log logging.Logger) *Coordinator {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	c := &Coordinator{
		sessionID: sessionID, bus: b, sessCtx: sessCtx, tts: tts, sink: sink, store: store,
		runners: runners, intensity: intensity, cfg: cfg, log: log,
		queue:   NewHandRaiseQueue(),
		phrases: newPhraseLibrary(),
		done:    make(chan struct{}),
	}
	b.Subscribe(bus.HandRaised, c.onHandRaised)
	b.Subscribe(bus.HandLowered, c.onHandLowered)
	b.Subscribe(bus.TranscriptUpdate, c.onTranscript)
	b.Subscribe(bus.SlideChanged, c.onSlideChanged)
	b.Subscribe(bus.SessionEnding, c.onSessionEnding)
	return c
}

func (c *Coordinator) onHandRaised(e bus.Event) {
	agentID, _ := e.Data["agent_id"].(string)
	if agentID == "" {
		return
	}
	cand := session.CandidateQuestion{
		AgentID: agentID,
	}
	if v, ok := e.Data["text"].(string); ok {
		cand.Text = v
	}
	if v, ok := e.Data["target_claim"].(string); ok {
		cand.TargetClaim = v
	}
	if v, ok := e.Data["slide_index"].(int); ok {
		cand.SlideIndex = v
	}
	if v, ok := e.Data["relevance_score"].(float64); ok {
		cand.RelevanceScore = v
	}
	c.queue.Add(agentID, cand, time.Now())
	c.emitQueueSnapshot()
}

func (c *Coordinator) onHandLowered(e bus.Event) {
	if agentID, ok := e.Data["agent_id"].(string); ok {
		c.queue.Remove(agentID)
		c.emitQueueSnapshot()
	}
}

func (c *Coordinator) emitQueueSnapshot() {
	if c.sink == nil {
		return
	}
	snap := c.queue.Snapshot()
	payload := make([]map[string]any, len(snap))
	for i, e := range snap {
		payload[i] = map[string]any{"agent_id": e.AgentID, "raised_at": e.RaisedAt}
	}
	_ = c.sink.Emit(context.Background(), "hand_raise_queue", map[string]any{"queue": payload})
}

// onTranscript handles presenter segments, which only matter to the
// Coordinator while an exchange is active: they reset the exchange
// timer and accumulate into the debounce buffer.
func (c *Coordinator) onTranscript(e bus.Event) {
	if c.sessCtx.State() != session.StateExchange {
		return
	}
	text, _ := e.Data["text"].(string)
	if strings.TrimSpace(text) == "" {
		return
	}

	c.exMu.Lock()
	defer c.exMu.Unlock()
	if c.active == nil {
		return
	}
	c.resetExchangeTimerLocked()
	if c.debounceBuf.Len() > 0 {
		c.debounceBuf.WriteString(" ")
	}
	c.debounceBuf.WriteString(text)

	if c.assessing {
		// An assessment is already in flight; new segments still
		// buffer but no new debounce task is scheduled for them.
		return
	}
	c.scheduleDebounceLocked()
}

func (c *Coordinator) scheduleDebounceLocked() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(responseDebounce, c.onDebounceFired)
}

func (c *Coordinator) onDebounceFired() {
	c.exMu.Lock()
	if c.active == nil || c.assessing {
		c.exMu.Unlock()
		return
	}
	text := strings.TrimSpace(c.debounceBuf.String())
	if countWords(text) < minResponseWords {
		c.exMu.Unlock()
		return
	}
	c.debounceBuf.Reset()
	ex := c.active
	c.assessing = true
	c.exMu.Unlock()

	c.onPresenterTurnRecorded(ex, text)
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func (c *Coordinator) onSlideChanged(e bus.Event) {
	if c.cfg.DurationSecs <= 0 || c.start.IsZero() {
		return
	}
	elapsed := time.Since(c.start).Seconds()
	ratio := elapsed / c.cfg.DurationSecs

	c.mu.Lock()
	defer c.mu.Unlock()
	if ratio >= 0.9 && !c.warned90 {
		c.warned90 = true
		c.emitModeratorLine(c.phrases.nextWarning(90))
	} else if ratio >= 0.8 && !c.warned80 {
		c.warned80 = true
		c.emitModeratorLine(c.phrases.nextWarning(80))
	}
}

func (c *Coordinator) onSessionEnding(bus.Event) {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.exMu.Lock()
	if c.exTimer != nil {
		c.exTimer.Stop()
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.exMu.Unlock()
}

func (c *Coordinator) emitModeratorLine(line string) {
	if line == "" {
		return
	}
	ctx := context.Background()
	audioURL := ""
	if c.tts != nil {
		if url, err := c.tts.Synthesize(ctx, "moderator", line, c.sessionID); err == nil {
			audioURL = url
		} else {
			c.log.Warn("moderator TTS failed: %v", err)
		}
	}
	if c.sink != nil {
		_ = c.sink.Emit(ctx, "moderator_message", map[string]any{"text": line, "audio_url": audioURL})
	}
}

// Run drives the 2s moderator loop until ctx is cancelled or the session
// ends. Skips selection while an exchange is active, and enforces a 5s
// cooldown after any resolution.
func (c *Coordinator) Run(ctx context.Context) {
	c.start = time.Now()
	ticker := time.NewTicker(moderatorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
		}

		if c.sessCtx.State() == session.StateExchange {
			continue
		}
		c.mu.Lock()
		cooling := !c.lastResolvedAt.IsZero() && time.Since(c.lastResolvedAt) < postResolutionCooldown
		c.mu.Unlock()
		if cooling {
			continue
		}

		winner, ok := c.queue.Select(time.Now(), c.totalQuestions)
		if !ok {
			continue
		}
		c.callOnAgent(ctx, winner)
	}
}

func (c *Coordinator) totalQuestions(agentID string) int {
	return c.sessCtx.GetAgentContext(agentID).TotalQuestions()
}

// callOnAgent runs the full selection-to-exchange-open sequence from
// SPEC_FULL.md §4.5.
func (c *Coordinator) callOnAgent(ctx context.Context, winner queueEntry) {
	c.sessCtx.SetState(session.StateQATrigger)

	personaName := winner.AgentID
	if p, ok := agent.Roster[winner.AgentID]; ok {
		personaName = p.Name
	}
	c.emitModeratorLine(fmt.Sprintf(c.phrases.nextTransition(), personaName))

	if c.sink != nil {
		_ = c.sink.Emit(ctx, "agent_question", map[string]any{
			"agent_id":     winner.AgentID,
			"text":         winner.Candidate.Text,
			"audio_url":    winner.Candidate.AudioURL,
			"audio_urls":   winner.Candidate.AudioURLs,
			"target_claim": winner.Candidate.TargetClaim,
		})
	}

	c.bus.Publish(bus.Event{Type: bus.AgentCalledOn, Timestamp: time.Now(), Source: "coordinator",
		Data: map[string]any{"agent_id": winner.AgentID}})
	c.bus.Publish(bus.Event{Type: bus.AgentSpoke, Timestamp: time.Now(), Source: winner.AgentID,
		Data: map[string]any{"agent_id": winner.AgentID, "text": winner.Candidate.Text}})

	ex := &session.Exchange{
		ID:           uuid.NewString()[:8],
		AgentID:      winner.AgentID,
		QuestionText: winner.Candidate.Text,
		TargetClaim:  winner.Candidate.TargetClaim,
		SlideIndex:   winner.Candidate.SlideIndex,
		StartedAt:    time.Now(),
		Turns: []session.ExchangeTurn{
			{Speaker: session.SpeakerAgent, Text: winner.Candidate.Text, Timestamp: time.Now()},
		},
	}
	c.sessCtx.BeginExchange(ex)

	maxTurns := 3
	if intensity, ok := c.intensity[winner.AgentID]; ok {
		maxTurns = intensity.MaxTurns()
	}

	c.exMu.Lock()
	c.active = ex
	c.debounceBuf.Reset()
	c.assessing = false
	c.resetExchangeTimerLocked()
	c.exMu.Unlock()

	c.bus.Publish(bus.Event{Type: bus.ExchangeStarted, Timestamp: time.Now(), Source: "coordinator",
		Data: map[string]any{"exchange_id": ex.ID, "agent_id": ex.AgentID}})
	if c.sink != nil {
		_ = c.sink.Emit(ctx, "session_state", map[string]any{"state": "exchange", "maxTurns": maxTurns})
	}
}

// resetExchangeTimerLocked must be called with exMu held.
func (c *Coordinator) resetExchangeTimerLocked() {
	if c.exTimer != nil {
		c.exTimer.Stop()
	}
	c.exTimer = time.AfterFunc(exchangeTimeout, c.onExchangeTimeout)
}

func (c *Coordinator) onExchangeTimeout() {
	c.exMu.Lock()
	ex := c.active
	c.exMu.Unlock()
	if ex == nil {
		return
	}
	c.resolveExchange(ex, session.OutcomeTimeout)
}

// onPresenterTurnRecorded is the debounce-fired continuation: record the
// presenter's turn, then either resolve on turn-limit or ask the
// runner to assess whether a follow-up is warranted.
func (c *Coordinator) onPresenterTurnRecorded(ex *session.Exchange, text string) {
	c.exMu.Lock()
	ex.Turns = append(ex.Turns, session.ExchangeTurn{Speaker: session.SpeakerPresenter, Text: text, Timestamp: time.Now()})
	c.resetExchangeTimerLocked()
	c.exMu.Unlock()

	if c.store != nil {
		go func() {
			_ = c.store.RecordTranscriptEntry(context.Background(), c.sessionID, ex.TurnCount(), map[string]any{
				"exchange_id": ex.ID, "speaker": "presenter", "text": text,
			})
		}()
	}

	maxTurns := 3
	if intensity, ok := c.intensity[ex.AgentID]; ok {
		maxTurns = intensity.MaxTurns()
	}
	if ex.PresenterTurnCount() >= maxTurns {
		c.finishAssessment()
		c.resolveExchange(ex, session.OutcomeTurnLimit)
		return
	}

	if c.sink != nil {
		_ = c.sink.Emit(context.Background(), "agent_thinking", map[string]any{"agent_id": ex.AgentID})
	}

	runner := c.runners[ex.AgentID]
	if runner == nil {
		c.finishAssessment()
		c.resolveExchange(ex, session.OutcomeSatisfied)
		return
	}

	go c.assessFollowUp(runner, ex, maxTurns)
}

func (c *Coordinator) assessFollowUp(runner *agent.Runner, ex *session.Exchange, maxTurns int) {
	evalCtx, cancel := context.WithTimeout(context.Background(), followUpEvalTimeout)
	defer cancel()

	followUp, err := runner.HandleExchangeFollowUp(evalCtx, ex, maxTurns)
	c.finishAssessment()

	if err != nil || followUp == nil {
		c.resolveExchange(ex, session.OutcomeSatisfied)
		return
	}

	c.exMu.Lock()
	if c.active != ex {
		c.exMu.Unlock()
		return
	}
	ex.Turns = append(ex.Turns, session.ExchangeTurn{Speaker: session.SpeakerAgent, Text: followUp.Text, Timestamp: time.Now()})
	ex.EvaluationReasoning = followUp.Reasoning
	c.resetExchangeTimerLocked()
	c.exMu.Unlock()

	if c.sink != nil {
		// Emit the follow-up text immediately for perceived latency.
		// It is sent as text only: no TTS audio is synthesized for
		// follow-up turns, neither here nor in a later event.
		_ = c.sink.Emit(context.Background(), "agent_follow_up", map[string]any{
			"agent_id": ex.AgentID, "text": followUp.Text,
		})
	}

	c.bus.Publish(bus.Event{Type: bus.AgentSpoke, Timestamp: time.Now(), Source: ex.AgentID,
		Data: map[string]any{"agent_id": ex.AgentID, "text": followUp.Text}})
}

func (c *Coordinator) finishAssessment() {
	c.exMu.Lock()
	c.assessing = false
	hasBuffered := strings.TrimSpace(c.debounceBuf.String()) != ""
	if hasBuffered {
		c.scheduleDebounceLocked()
	}
	c.exMu.Unlock()
}

// resolveExchange runs the full resolution sequence from
// SPEC_FULL.md §4.5. The profile is updated first; the Sink's
// exchange_resolved emit then comes ahead of the state change and the bus
// publish, so the UI is never left hanging on a slow bus publish.
func (c *Coordinator) resolveExchange(ex *session.Exchange, outcome session.ExchangeOutcome) {
	c.exMu.Lock()
	if c.active != ex {
		c.exMu.Unlock()
		return // already resolved by another path (e.g. timeout racing turn-limit)
	}
	if c.exTimer != nil {
		c.exTimer.Stop()
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.active = nil
	c.debounceBuf.Reset()
	c.assessing = false
	c.exMu.Unlock()

	ex.Outcome = outcome
	ex.ResolvedAt = time.Now()

	agentCtx := c.sessCtx.GetAgentContext(ex.AgentID)
	agentCtx.RecordResolvedExchange(ex)
	c.sessCtx.ResolveExchange(ex)

	c.updatePresenterProfile(agentCtx, ex, outcome)

	ctx := context.Background()
	if c.sink != nil {
		_ = c.sink.Emit(ctx, "exchange_resolved", map[string]any{
			"exchange_id": ex.ID, "agent_id": ex.AgentID, "outcome": string(outcome),
		})
	}

	c.sessCtx.SetState(session.StatePresenting)
	if c.sink != nil {
		_ = c.sink.Emit(ctx, "session_state", map[string]any{"state": "presenting"})
	}

	c.bus.Publish(bus.Event{Type: bus.ExchangeResolved, Timestamp: time.Now(), Source: "coordinator",
		Data: map[string]any{"exchange_id": ex.ID, "agent_id": ex.AgentID, "outcome": string(outcome)}})

	c.mu.Lock()
	c.lastResolvedAt = time.Now()
	c.mu.Unlock()

	go c.emitModeratorLine(c.phrases.nextBridgeBack(outcome))
}

// updatePresenterProfile applies the deterministic rules from
// SPEC_FULL.md §4.5.
func (c *Coordinator) updatePresenterProfile(agentCtx *session.AgentSessionContext, ex *session.Exchange, outcome session.ExchangeOutcome) {
	profile := agentCtx.Profile()

	switch outcome {
	case session.OutcomeSatisfied:
		if ex.PresenterTurnCount() <= 1 {
			profile.ResponsePatterns = append(profile.ResponsePatterns, "strong direct answer")
			profile.DataReadiness = session.DataReadinessStrong
		} else {
			profile.ResponsePatterns = append(profile.ResponsePatterns, "eventually answered")
			profile.DataReadiness = session.DataReadinessModerate
		}
	case session.OutcomeModeratorIntervened, session.OutcomeTurnLimit:
		profile.ResponsePatterns = append(profile.ResponsePatterns, "could not address")
		profile.DataReadiness = session.DataReadinessWeak
		profile.BehavioralNotes = append(profile.BehavioralNotes, truncate(ex.QuestionText, 80))
	case session.OutcomeEscalate:
		profile.RecommendedStrategy = session.StrategyPushHarder
	case session.OutcomeTimeout:
		profile.ResponsePatterns = append(profile.ResponsePatterns, "no response")
		profile.DataReadiness = session.DataReadinessWeak
	}

	agentCtx.UpdateProfile(profile)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
