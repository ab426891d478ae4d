package coordinator

import "github.com/lokutor-ai/boardroom-runtime/pkg/session"

// phraseLibrary holds the moderator's stock lines, selected round-robin
// per call so repeated calls don't repeat the same phrase back to back
// while staying fully deterministic (no randomness) and easy to test.
type phraseLibrary struct {
	transition []string
	bridgeBack map[session.ExchangeOutcome][]string
	warning80  []string
	warning90  []string

	transitionIdx int
	bridgeIdx     map[session.ExchangeOutcome]int
	warnIdx       int
}

func newPhraseLibrary() *phraseLibrary {
	return &phraseLibrary{
		transition: []string{
			"Let's bring in %s on that.",
			"%s, I'd like your take here.",
			"I want to pause and hear from %s.",
		},
		bridgeBack: map[session.ExchangeOutcome][]string{
			session.OutcomeSatisfied: {
				"Thanks, let's continue.",
				"Appreciate the clarity — please carry on.",
			},
			session.OutcomeFollowUp: {
				"Let's keep going.",
				"Alright, moving on.",
			},
			session.OutcomeEscalate: {
				"We'll come back to that. Please continue.",
				"Noted — let's press ahead.",
			},
			session.OutcomeModeratorIntervened: {
				"Let's move things along. Please continue.",
			},
			session.OutcomeTurnLimit: {
				"We're out of time on that thread — please continue.",
				"Let's table that for now and keep going.",
			},
			session.OutcomeTimeout: {
				"Let's pick the pace back up. Please continue.",
			},
		},
		warning80: []string{
			"We're at about eighty percent of our time — let's keep things moving.",
		},
		warning90: []string{
			"We're close to time. Let's wrap up the remaining points.",
		},
		bridgeIdx: make(map[session.ExchangeOutcome]int),
	}
}

const defaultTransition = "Let's hear from %s."

func (p *phraseLibrary) nextTransition() string {
	if len(p.transition) == 0 {
		return defaultTransition
	}
	phrase := p.transition[p.transitionIdx%len(p.transition)]
	p.transitionIdx++
	return phrase
}

const defaultBridgeBack = "Let's continue."

func (p *phraseLibrary) nextBridgeBack(outcome session.ExchangeOutcome) string {
	bank := p.bridgeBack[outcome]
	if len(bank) == 0 {
		return defaultBridgeBack
	}
	idx := p.bridgeIdx[outcome]
	phrase := bank[idx%len(bank)]
	p.bridgeIdx[outcome] = idx + 1
	return phrase
}

func (p *phraseLibrary) nextWarning(pct int) string {
	bank := p.warning80
	if pct >= 90 {
		bank = p.warning90
	}
	if len(bank) == 0 {
		return ""
	}
	phrase := bank[p.warnIdx%len(bank)]
	p.warnIdx++
	return phrase
}
