package session

import "testing"

func TestGetAgentContextReturnsSameInstance(t *testing.T) {
	s := New("sess-1")
	a1 := s.GetAgentContext("skeptic")
	a2 := s.GetAgentContext("skeptic")
	if a1 != a2 {
		t.Fatal("expected GetAgentContext to return the same instance on repeated calls")
	}
}

func TestActiveExchangeInvariant(t *testing.T) {
	s := New("sess-1")
	if s.ActiveExchange() != nil {
		t.Fatal("expected no active exchange initially")
	}
	if s.State() != StatePresenting {
		t.Fatal("expected initial state PRESENTING")
	}

	e := &Exchange{ID: "e1", AgentID: "skeptic"}
	s.BeginExchange(e)
	if s.ActiveExchange() == nil {
		t.Fatal("expected active exchange after BeginExchange")
	}
	if s.State() != StateExchange {
		t.Fatal("expected state EXCHANGE while an exchange is active")
	}

	e.Outcome = OutcomeSatisfied
	s.ResolveExchange(e)
	if s.ActiveExchange() != nil {
		t.Fatal("expected no active exchange after ResolveExchange")
	}
}

func TestRequireActiveExchange(t *testing.T) {
	s := New("sess-1")
	if _, err := s.RequireActiveExchange(); err != ErrNoActiveExchange {
		t.Fatalf("expected ErrNoActiveExchange, got %v", err)
	}

	e := &Exchange{ID: "e1", AgentID: "skeptic"}
	s.BeginExchange(e)
	got, err := s.RequireActiveExchange()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != e {
		t.Fatal("expected the active exchange back")
	}
}

func TestChallengedClaimRecordedOnResolution(t *testing.T) {
	s := New("sess-1")
	ctx := s.GetAgentContext("skeptic")

	e := &Exchange{ID: "e1", AgentID: "skeptic", TargetClaim: "revenue will grow 40%", Outcome: OutcomeSatisfied}
	ctx.RecordResolvedExchange(e)

	if !ctx.HasChallenged("revenue will grow 40%") {
		t.Fatal("expected target claim to be recorded as challenged")
	}
}

func TestReplaceClaimsLatestWins(t *testing.T) {
	s := New("sess-1")
	s.ReplaceClaims(map[int][]Claim{0: {{Text: "first pass", Type: ClaimFinancial, Confidence: 0.5}}})
	s.ReplaceClaims(map[int][]Claim{0: {{Text: "second pass", Type: ClaimMarket, Confidence: 0.9}}})

	claims := s.ClaimsForSlide(0)
	if len(claims) != 1 || claims[0].Text != "second pass" {
		t.Fatalf("expected latest CLAIMS_READY to replace prior claims, got %v", claims)
	}
}

func TestUnchallengedClaimsExcludesChallenged(t *testing.T) {
	s := New("sess-1")
	ctx := s.GetAgentContext("skeptic")
	s.ReplaceClaims(map[int][]Claim{
		1: {
			{Text: "claim a"},
			{Text: "claim b"},
		},
	})
	ctx.RecordResolvedExchange(&Exchange{TargetClaim: "claim a", Outcome: OutcomeSatisfied})

	remaining := s.UnchallengedClaims(1, ctx)
	if len(remaining) != 1 || remaining[0].Text != "claim b" {
		t.Fatalf("expected only unchallenged claim b remaining, got %v", remaining)
	}
}

func TestExchangeTurnCounts(t *testing.T) {
	e := &Exchange{}
	e.Turns = append(e.Turns,
		ExchangeTurn{Speaker: SpeakerAgent, Text: "question"},
		ExchangeTurn{Speaker: SpeakerPresenter, Text: "answer one"},
		ExchangeTurn{Speaker: SpeakerAgent, Text: "follow up"},
		ExchangeTurn{Speaker: SpeakerPresenter, Text: "answer two"},
	)
	if e.TurnCount() != 4 {
		t.Fatalf("expected 4 turns, got %d", e.TurnCount())
	}
	if e.PresenterTurnCount() != 2 {
		t.Fatalf("expected 2 presenter turns, got %d", e.PresenterTurnCount())
	}
	if e.AgentTurnCount() != 2 {
		t.Fatalf("expected 2 agent turns, got %d", e.AgentTurnCount())
	}
	if e.IsResolved() {
		t.Fatal("expected exchange without an outcome to not be resolved")
	}
	e.Outcome = OutcomeTurnLimit
	if !e.IsResolved() {
		t.Fatal("expected exchange with an outcome to be resolved")
	}
}

func TestPresenterProfileToTextOmitsEmptySections(t *testing.T) {
	p := &PresenterProfile{}
	if p.ToText() != "" {
		t.Fatalf("expected empty profile to render empty text, got %q", p.ToText())
	}
	p.ResponsePatterns = []string{"strong direct answer"}
	p.DataReadiness = DataReadinessStrong
	text := p.ToText()
	if text == "" {
		t.Fatal("expected non-empty text once fields are populated")
	}
}
