package session

import "sync"

// SessionContext is the shared mutable state for one session. Writers:
// only the Coordinator mutates State, ActiveExchange, and
// CompletedExchanges; only each agent's own goroutine mutates its
// AgentSessionContext, except at exchange resolution which the
// Coordinator performs directly against that context's own mutex. Readers
// may call any accessor at any time.
type SessionContext struct {
	SessionID string

	mu                  sync.RWMutex
	state               State
	activeExchange      *Exchange
	completedExchanges  []*Exchange
	claimsBySlide       map[int][]Claim

	agentContexts sync.Map // agentID string -> *AgentSessionContext
}

// New creates a SessionContext in the PRESENTING state.
func New(sessionID string) *SessionContext {
	return &SessionContext{
		SessionID:     sessionID,
		state:         StatePresenting,
		claimsBySlide: make(map[int][]Claim),
	}
}

// GetAgentContext returns the AgentSessionContext for id, creating it on
// first access. Repeated calls with the same id always return the same
// instance.
func (s *SessionContext) GetAgentContext(id string) *AgentSessionContext {
	if v, ok := s.agentContexts.Load(id); ok {
		return v.(*AgentSessionContext)
	}
	v, _ := s.agentContexts.LoadOrStore(id, NewAgentSessionContext(id))
	return v.(*AgentSessionContext)
}

// State returns the current session state.
func (s *SessionContext) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ActiveExchange returns the in-progress exchange, or nil if none.
// state == EXCHANGE iff the returned value is non-nil.
func (s *SessionContext) ActiveExchange() *Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeExchange
}

// BeginExchange installs e as the active exchange and transitions to
// EXCHANGE. Called only by the Coordinator.
func (s *SessionContext) BeginExchange(e *Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeExchange = e
	s.state = StateExchange
}

// SetState sets the session state directly, for transitions that are not
// tied to opening/closing an exchange (QA_TRIGGER, RESOLVING, back to
// PRESENTING). Called only by the Coordinator.
func (s *SessionContext) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// ResolveExchange clears the active exchange, appends it to completed
// history, and moves state to RESOLVING. Called only by the Coordinator,
// after stamping the exchange's Outcome/ResolvedAt.
func (s *SessionContext) ResolveExchange(e *Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeExchange = nil
	s.completedExchanges = append(s.completedExchanges, e)
	s.state = StateResolving
}

// AllExchanges returns every completed exchange across all agents, plus
// the active one if present, oldest first.
func (s *SessionContext) AllExchanges() []*Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Exchange, len(s.completedExchanges))
	copy(out, s.completedExchanges)
	if s.activeExchange != nil {
		out = append(out, s.activeExchange)
	}
	return out
}

// UnresolvedChallenges returns completed exchanges whose outcome left the
// target claim unresolved in the presenter's favor (FOLLOW_UP, ESCALATE,
// TIMEOUT, TURN_LIMIT, MODERATOR_INTERVENED) — i.e. everything but
// SATISFIED.
func (s *SessionContext) UnresolvedChallenges() []*Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Exchange
	for _, e := range s.completedExchanges {
		if e.Outcome != OutcomeSatisfied {
			out = append(out, e)
		}
	}
	return out
}

// ReplaceClaims replaces the claims-by-slide map wholesale. Called on
// every CLAIMS_READY event; the latest publish is always authoritative.
func (s *SessionContext) ReplaceClaims(bySlide map[int][]Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimsBySlide = bySlide
}

// AllClaimCounts returns the number of claims recorded per slide index,
// for the LOADING-state "agent_loaded" log line.
func (s *SessionContext) AllClaimCounts() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int, len(s.claimsBySlide))
	for idx, claims := range s.claimsBySlide {
		out[idx] = len(claims)
	}
	return out
}

// ClaimsForSlide returns the claims attached to slideIndex.
func (s *SessionContext) ClaimsForSlide(slideIndex int) []Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claims := s.claimsBySlide[slideIndex]
	out := make([]Claim, len(claims))
	copy(out, claims)
	return out
}

// UnchallengedClaims returns the claims on slideIndex not yet in
// agentCtx's challenged-claims set.
func (s *SessionContext) UnchallengedClaims(slideIndex int, agentCtx *AgentSessionContext) []Claim {
	claims := s.ClaimsForSlide(slideIndex)
	if len(claims) == 0 {
		return nil
	}
	var out []Claim
	for _, c := range claims {
		if !agentCtx.HasChallenged(c.Text) {
			out = append(out, c)
		}
	}
	return out
}
