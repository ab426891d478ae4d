// Package session holds the shared mutable session state: exchanges,
// per-agent context, claims, and the presenter profile. Mutation follows
// single-writer-per-field discipline — see SessionContext for the
// enforced ownership rules.
package session

import (
	"fmt"
	"strings"
	"time"
)

// Speaker identifies who produced an ExchangeTurn.
type Speaker string

const (
	SpeakerAgent     Speaker = "agent"
	SpeakerPresenter Speaker = "presenter"
)

// ExchangeTurn is one utterance within an Exchange.
type ExchangeTurn struct {
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// ExchangeOutcome is the terminal classification of a resolved Exchange.
type ExchangeOutcome string

const (
	OutcomeSatisfied           ExchangeOutcome = "SATISFIED"
	OutcomeFollowUp            ExchangeOutcome = "FOLLOW_UP"
	OutcomeEscalate            ExchangeOutcome = "ESCALATE"
	OutcomeModeratorIntervened ExchangeOutcome = "MODERATOR_INTERVENED"
	OutcomeTurnLimit           ExchangeOutcome = "TURN_LIMIT"
	OutcomeTimeout             ExchangeOutcome = "TIMEOUT"
)

// CandidateQuestion is a question an agent has prepared (and pre-synthesized
// audio for) before raising its hand. AudioURL is the first sentence's
// audio, for immediate delivery latency; AudioURLs holds every sentence's
// audio in order as it completes streaming synthesis.
type CandidateQuestion struct {
	AgentID        string
	Text           string
	TargetClaim    string
	SlideIndex     int
	AudioURL       string
	AudioURLs      []string
	RelevanceScore float64
}

// Exchange is a single bounded multi-turn dialogue between one agent and
// the presenter. Mutated only by the Coordinator; frozen once ResolvedAt
// is set.
type Exchange struct {
	ID                 string
	AgentID            string
	QuestionText       string
	TargetClaim        string
	SlideIndex         int
	Turns              []ExchangeTurn
	Outcome            ExchangeOutcome
	StartedAt          time.Time
	ResolvedAt         time.Time
	EvaluationReasoning string
}

// IsResolved reports whether a terminal outcome has been recorded.
func (e *Exchange) IsResolved() bool {
	return e.Outcome != ""
}

// TurnCount is the total number of turns recorded so far.
func (e *Exchange) TurnCount() int {
	return len(e.Turns)
}

// PresenterTurnCount is the number of presenter turns recorded so far.
func (e *Exchange) PresenterTurnCount() int {
	n := 0
	for _, t := range e.Turns {
		if t.Speaker == SpeakerPresenter {
			n++
		}
	}
	return n
}

// AgentTurnCount is the number of agent turns recorded so far.
func (e *Exchange) AgentTurnCount() int {
	return len(e.Turns) - e.PresenterTurnCount()
}

// DataReadiness classifies how well the presenter's answers in an
// AgentSessionContext's history are backed by data.
type DataReadiness string

const (
	DataReadinessStrong   DataReadiness = "strong"
	DataReadinessModerate DataReadiness = "moderate"
	DataReadinessWeak     DataReadiness = "weak"
	DataReadinessUnknown  DataReadiness = "unknown"
)

// Strategy is the Coordinator's recommended posture toward the presenter
// for a given agent's subsequent questions.
type Strategy string

const (
	StrategyPushHarder Strategy = "push_harder"
	StrategyStandard   Strategy = "standard"
	StrategySupportive Strategy = "supportive"
)

// PresenterProfile accumulates one agent's read on the presenter's
// performance, updated deterministically by the Coordinator at exchange
// resolution.
type PresenterProfile struct {
	ResponsePatterns   []string
	DataReadiness      DataReadiness
	BehavioralNotes    []string
	RecommendedStrategy Strategy
}

// ToText renders the profile for prompt assembly: the last five response
// patterns and behavioral notes, with sections omitted when empty.
func (p *PresenterProfile) ToText() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if len(p.ResponsePatterns) > 0 {
		patterns := p.ResponsePatterns
		if len(patterns) > 5 {
			patterns = patterns[len(patterns)-5:]
		}
		b.WriteString("Response patterns observed: ")
		b.WriteString(strings.Join(patterns, "; "))
		b.WriteString(".\n")
	}
	if p.DataReadiness != "" && p.DataReadiness != DataReadinessUnknown {
		fmt.Fprintf(&b, "Data readiness: %s.\n", p.DataReadiness)
	}
	if len(p.BehavioralNotes) > 0 {
		notes := p.BehavioralNotes
		if len(notes) > 5 {
			notes = notes[len(notes)-5:]
		}
		b.WriteString("Behavioral notes: ")
		b.WriteString(strings.Join(notes, "; "))
		b.WriteString(".\n")
	}
	if p.RecommendedStrategy != "" && p.RecommendedStrategy != StrategyStandard {
		fmt.Fprintf(&b, "Recommended strategy: %s.\n", p.RecommendedStrategy)
	}
	return strings.TrimSpace(b.String())
}

// ClaimType categorizes a machine-extracted claim.
type ClaimType string

const (
	ClaimFinancial   ClaimType = "financial"
	ClaimMarket      ClaimType = "market"
	ClaimTimeline    ClaimType = "timeline"
	ClaimCapability  ClaimType = "capability"
	ClaimCompetitive ClaimType = "competitive"
)

// Claim is a challengeable assertion attached to a slide.
type Claim struct {
	Text       string
	Type       ClaimType
	Confidence float64
}

// State is the Coordinator-driven session lifecycle phase.
type State string

const (
	StatePresenting State = "PRESENTING"
	StateQATrigger  State = "QA_TRIGGER"
	StateExchange   State = "EXCHANGE"
	StateResolving  State = "RESOLVING"
)
