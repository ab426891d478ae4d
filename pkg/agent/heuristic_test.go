package agent

import "testing"

func TestShouldAskCooldownSuppresses(t *testing.T) {
	fire, _ := shouldAsk(shouldAskParams{
		HasAskedBefore: true, SecondsSinceLastQuestion: 5, TranscriptGrowth: 10, UnchallengedClaimCount: 3,
	})
	if fire {
		t.Fatal("expected cooldown to suppress firing")
	}
}

func TestShouldAskRequiresGrowthOrClaim(t *testing.T) {
	fire, _ := shouldAsk(shouldAskParams{TranscriptGrowth: 0, UnchallengedClaimCount: 0})
	if fire {
		t.Fatal("expected no trigger with zero growth and zero unchallenged claims")
	}
}

func TestShouldAskFirstQuestionWins(t *testing.T) {
	fire, reason := shouldAsk(shouldAskParams{
		IsFirstQuestion: true, TranscriptGrowth: 2, UnchallengedClaimCount: 1,
	})
	if !fire || reason != ReasonFirstQuestion {
		t.Fatalf("expected first_question trigger, got fire=%v reason=%s", fire, reason)
	}
}

func TestShouldAskUnchallengedClaimsBeatsGrowthPressure(t *testing.T) {
	fire, reason := shouldAsk(shouldAskParams{
		IsFirstQuestion: false, TranscriptGrowth: 10, UnchallengedClaimCount: 1,
		ElapsedSecs: 900, DurationSecs: 1000,
	})
	if !fire || reason != ReasonUnchallengedClaims {
		t.Fatalf("expected unchallenged_claims trigger, got fire=%v reason=%s", fire, reason)
	}
}

func TestShouldAskTranscriptGrowthTimePressure(t *testing.T) {
	fire, reason := shouldAsk(shouldAskParams{
		TranscriptGrowth: 3, ElapsedSecs: 400, DurationSecs: 1000,
	})
	if !fire || reason != ReasonTranscriptGrowthTimePressure {
		t.Fatalf("expected transcript_growth+time_pressure, got fire=%v reason=%s", fire, reason)
	}
}

func TestShouldAskTimePressureRequiresElapsedRatio(t *testing.T) {
	fire, _ := shouldAsk(shouldAskParams{
		TranscriptGrowth: 3, ElapsedSecs: 100, DurationSecs: 1000,
	})
	if fire {
		t.Fatal("expected no trigger when elapsed ratio under 0.3 and growth below high-growth threshold")
	}
}

func TestShouldAskHighTranscriptGrowth(t *testing.T) {
	fire, reason := shouldAsk(shouldAskParams{TranscriptGrowth: 5})
	if !fire || reason != ReasonHighTranscriptGrowth {
		t.Fatalf("expected high_transcript_growth, got fire=%v reason=%s", fire, reason)
	}
}
