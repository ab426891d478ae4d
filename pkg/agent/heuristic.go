package agent

// TriggerReason names which should-ask rule fired, for logging/telemetry.
type TriggerReason string

const (
	ReasonNone                       TriggerReason = ""
	ReasonFirstQuestion               TriggerReason = "first_question"
	ReasonUnchallengedClaims          TriggerReason = "unchallenged_claims"
	ReasonTranscriptGrowthTimePressure TriggerReason = "transcript_growth+time_pressure"
	ReasonHighTranscriptGrowth        TriggerReason = "high_transcript_growth"
)

const questionCooldownSecs = 15.0

// shouldAskParams is every input the EVALUATING-state heuristic reads.
// All booleans/counts — no LLM call is made to decide whether to ask.
type shouldAskParams struct {
	IsFirstQuestion          bool
	TranscriptGrowth         int
	UnchallengedClaimCount   int
	ElapsedSecs              float64
	DurationSecs             float64
	SecondsSinceLastQuestion float64
	HasAskedBefore           bool
}

// shouldAsk implements the EVALUATING-state decision: skip on cooldown,
// require some transcript growth or an unchallenged claim, then the
// first matching trigger wins.
func shouldAsk(p shouldAskParams) (bool, TriggerReason) {
	if p.HasAskedBefore && p.SecondsSinceLastQuestion < questionCooldownSecs {
		return false, ReasonNone
	}
	if p.TranscriptGrowth == 0 && p.UnchallengedClaimCount == 0 {
		return false, ReasonNone
	}

	switch {
	case p.IsFirstQuestion && p.TranscriptGrowth >= 2:
		return true, ReasonFirstQuestion
	case p.UnchallengedClaimCount >= 1:
		return true, ReasonUnchallengedClaims
	case p.TranscriptGrowth >= 3 && p.DurationSecs > 0 && p.ElapsedSecs/p.DurationSecs > 0.3:
		return true, ReasonTranscriptGrowthTimePressure
	case p.TranscriptGrowth >= 5:
		return true, ReasonHighTranscriptGrowth
	default:
		return false, ReasonNone
	}
}
