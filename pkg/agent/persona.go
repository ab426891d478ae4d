package agent

// Intensity controls how adversarial an agent's questioning posture is,
// and derives the per-exchange turn budget.
type Intensity string

const (
	IntensityFriendly    Intensity = "friendly"
	IntensityModerate    Intensity = "moderate"
	IntensityAdversarial Intensity = "adversarial"
)

// MaxTurns returns the presenter-turn budget for an exchange at this
// intensity, per SPEC_FULL.md §6's config table.
func (i Intensity) MaxTurns() int {
	switch i {
	case IntensityFriendly:
		return 2
	case IntensityAdversarial:
		return 4
	default:
		return 3
	}
}

// Persona describes one panelist: identity plus a static fallback
// question bank used when the LLM is unavailable.
type Persona struct {
	ID       string
	Name     string
	Role     string
	Title    string
	Fallback []string
}

// Roster is the ten standing panelist personas.
var Roster = map[string]Persona{
	"moderator": {
		ID: "moderator", Name: "Diana Chen", Role: "Moderator", Title: "Chief of Staff",
	},
	"skeptic": {
		ID: "skeptic", Name: "Marcus Webb", Role: "The Skeptic", Title: "CFO",
		Fallback: []string{
			"Walk me through the unit economics behind that number.",
			"What happens to this plan if your top assumption is wrong?",
			"How confident are you in that projection, and why?",
			"What's the downside case look like here?",
		},
	},
	"analyst": {
		ID: "analyst", Name: "Priya Sharma", Role: "The Analyst", Title: "VP of Strategy",
		Fallback: []string{
			"What data supports that market sizing?",
			"How does this compare to the last two quarters?",
			"Which of these metrics do you trust the least right now?",
			"What's the source for that benchmark?",
		},
	},
	"contrarian": {
		ID: "contrarian", Name: "James O'Brien", Role: "The Contrarian", Title: "Board Advisor",
		Fallback: []string{
			"Why wouldn't a competitor just do this first?",
			"What's the strongest argument against your own plan?",
			"Who on this team disagrees with that, and why?",
			"What would have to be true for this to fail?",
		},
	},
	"technologist": {
		ID: "technologist", Name: "Rachel Kim", Role: "The Technologist", Title: "CTO",
		Fallback: []string{
			"What's the biggest technical risk in that roadmap?",
			"How does this scale past the current architecture?",
			"What happens if that vendor dependency breaks?",
			"How much of this is built versus bought?",
		},
	},
	"coo": {
		ID: "coo", Name: "Sandra Mitchell", Role: "The Operator", Title: "COO",
		Fallback: []string{
			"Who actually owns execution on this, day to day?",
			"What breaks operationally if we double the pace?",
			"Where's the bottleneck in this plan?",
			"How do you know this is on track today?",
		},
	},
	"ceo": {
		ID: "ceo", Name: "Michael Zhang", Role: "The Visionary", Title: "CEO",
		Fallback: []string{
			"How does this move the needle on our bigger bet?",
			"What's the one thing that has to go right here?",
			"Where do you want this to be in two years?",
			"What would make you walk away from this?",
		},
	},
	"cio": {
		ID: "cio", Name: "Robert Adeyemi", Role: "The Investor", Title: "Chief Investment Officer",
		Fallback: []string{
			"What's the return profile on the capital this requires?",
			"How does this compare to our next-best use of funds?",
			"What's the payback period on this, realistically?",
			"Where's the capital efficiency argument here?",
		},
	},
	"chro": {
		ID: "chro", Name: "Lisa Nakamura", Role: "The People Expert", Title: "CHRO",
		Fallback: []string{
			"Do we have the people to actually deliver this?",
			"What's the hiring plan behind that timeline?",
			"How does this affect the team already stretched thin?",
			"Who's accountable if this slips?",
		},
	},
	"cco": {
		ID: "cco", Name: "Thomas Brennan", Role: "The Guardian", Title: "Chief Corporate Officer",
		Fallback: []string{
			"What's the compliance exposure in that approach?",
			"Have legal and risk signed off on this?",
			"What's the reputational downside if this goes wrong?",
			"How does this hold up under regulatory scrutiny?",
		},
	},
}

// FallbackQuestion returns the persona's fallback question, cycled by the
// agent's running question count, for use when the LLM call fails.
func FallbackQuestion(personaID string, questionCount int) string {
	p, ok := Roster[personaID]
	if !ok || len(p.Fallback) == 0 {
		return "Can you say more about that?"
	}
	return p.Fallback[questionCount%len(p.Fallback)]
}

// IntensityInstruction returns the phrasing guidance composed into a
// persona's prompt for the given intensity.
func IntensityInstruction(i Intensity) string {
	switch i {
	case IntensityFriendly:
		return "Be warm and collaborative. Frame the question as genuine curiosity, not a challenge. " +
			"Example phrasing: \"Could you help me understand...\" or \"I'd love to hear more about...\""
	case IntensityAdversarial:
		return "Be direct and pressing. Do not soften the question. Expect a real answer, not reassurance. " +
			"Example phrasing: \"That doesn't add up unless...\" or \"Push back on the premise here: ...\""
	default:
		return "Be professional and probing, but fair. Give the presenter room to respond. " +
			"Example phrasing: \"Help me understand how...\" or \"What's the reasoning behind...\""
	}
}
