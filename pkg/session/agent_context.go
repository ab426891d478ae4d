package session

import "sync"

// AgentSessionContext is owned by exactly one AgentRunner, except at the
// single Coordinator-owned transition point (exchange resolution) where
// the Coordinator appends the resolved Exchange and any challenged claim —
// serialized with agent reads via this struct's own mutex.
type AgentSessionContext struct {
	AgentID string

	mu               sync.Mutex
	exchanges        []*Exchange
	presenterProfile PresenterProfile
	challengedClaims []string
}

// NewAgentSessionContext creates an empty context for one agent.
func NewAgentSessionContext(agentID string) *AgentSessionContext {
	return &AgentSessionContext{AgentID: agentID}
}

// RecordResolvedExchange appends a resolved exchange to this agent's
// history and, if it had a target claim, records it as challenged. Called
// only by the Coordinator at resolution time.
func (a *AgentSessionContext) RecordResolvedExchange(e *Exchange) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exchanges = append(a.exchanges, e)
	if e.TargetClaim != "" {
		a.challengedClaims = append(a.challengedClaims, e.TargetClaim)
	}
}

// UpdateProfile replaces the presenter profile snapshot. Called only by
// the Coordinator at resolution time, under the PresenterProfile update
// rules.
func (a *AgentSessionContext) UpdateProfile(p PresenterProfile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.presenterProfile = p
}

// Profile returns a copy of the current presenter profile.
func (a *AgentSessionContext) Profile() PresenterProfile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.presenterProfile
}

// Exchanges returns a snapshot of this agent's resolved-exchange history.
func (a *AgentSessionContext) Exchanges() []*Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Exchange, len(a.exchanges))
	copy(out, a.exchanges)
	return out
}

// ChallengedClaims returns a snapshot of claim texts already challenged by
// this agent.
func (a *AgentSessionContext) ChallengedClaims() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.challengedClaims))
	copy(out, a.challengedClaims)
	return out
}

// HasChallenged reports whether claimText has already been challenged by
// this agent.
func (a *AgentSessionContext) HasChallenged(claimText string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.challengedClaims {
		if c == claimText {
			return true
		}
	}
	return false
}

// TotalQuestions is the number of resolved exchanges this agent has had —
// used by the Coordinator's hand-raise fairness scoring.
func (a *AgentSessionContext) TotalQuestions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.exchanges)
}

// SatisfiedCount is the number of resolved exchanges with outcome SATISFIED.
func (a *AgentSessionContext) SatisfiedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.exchanges {
		if e.Outcome == OutcomeSatisfied {
			n++
		}
	}
	return n
}

// UnresolvedExchanges returns exchanges in this agent's history without a
// terminal outcome. In normal operation this is always empty since only
// resolved exchanges are recorded here; kept for parity with the
// historical session model and for diagnostic assertions in tests.
func (a *AgentSessionContext) UnresolvedExchanges() []*Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Exchange
	for _, e := range a.exchanges {
		if !e.IsResolved() {
			out = append(out, e)
		}
	}
	return out
}
