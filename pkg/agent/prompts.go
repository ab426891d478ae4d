package agent

import (
	"fmt"
	"strings"
)

// QuestionPromptInput carries every field BuildQuestionPrompt composes
// into a persona's system prompt. Shaped after what agent_runner.py's
// _generate_question actually passes at its call site — richer than the
// narrower signature declared elsewhere in the original source, which
// this module treats as the authoritative, richer contract.
type QuestionPromptInput struct {
	PersonaID           string
	Intensity           Intensity
	FocusAreas          []string
	SlideIndex          int
	TotalSlides         int
	SlideTitle          string
	SlideContent        string
	SlideNotes          string
	CurrentSlideSpeech  string
	AllSlidesContext    string
	Transcript          string
	PresentationSummary string
	KeyClaims           []string
	PreviousQuestions   []string
	ExchangeHistory     string
	CrossAgentSummary   string
	PresenterProfile    string
	TargetClaim         string
	ElapsedSeconds      float64
}

// BuildQuestionPrompt assembles one agent's system prompt for generating
// its next question. Pure string composition over the loaded persona
// template plus the assembled context window.
func BuildQuestionPrompt(templates *TemplateSet, in QuestionPromptInput) (string, error) {
	persona, ok := Roster[in.PersonaID]
	if !ok {
		return "", fmt.Errorf("agent prompts: unknown persona %q", in.PersonaID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s (%s), participating in a live boardroom Q&A.\n\n", persona.Name, persona.Role, persona.Title)
	b.WriteString(IntensityInstruction(in.Intensity))
	b.WriteString("\n\n")

	if knowledge := templates.Get(in.PersonaID, "persona"); knowledge != "" {
		b.WriteString(knowledge)
		b.WriteString("\n\n")
	}

	if len(in.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus areas for this session: %s.\n\n", strings.Join(in.FocusAreas, ", "))
	} else {
		b.WriteString("No specific focus areas selected.\n\n")
	}

	if in.PresentationSummary != "" {
		fmt.Fprintf(&b, "Presentation so far:\n%s\n\n", in.PresentationSummary)
	}
	if in.AllSlidesContext != "" {
		fmt.Fprintf(&b, "All slides overview:\n%s\n\n", in.AllSlidesContext)
	}

	fmt.Fprintf(&b, "Current slide (%d of %d): %s\n", in.SlideIndex+1, in.TotalSlides, in.SlideTitle)
	if in.SlideContent != "" {
		fmt.Fprintf(&b, "%s\n", in.SlideContent)
	}
	if in.SlideNotes != "" {
		fmt.Fprintf(&b, "Speaker notes: %s\n", in.SlideNotes)
	}
	if in.CurrentSlideSpeech != "" {
		fmt.Fprintf(&b, "\nWhat the presenter has said on this slide:\n%s\n", in.CurrentSlideSpeech)
	}
	b.WriteString("\n")

	if in.Transcript != "" {
		fmt.Fprintf(&b, "Transcript:\n%s\n\n", in.Transcript)
	}
	if len(in.KeyClaims) > 0 {
		fmt.Fprintf(&b, "Key claims made so far:\n- %s\n\n", strings.Join(in.KeyClaims, "\n- "))
	}
	if in.TargetClaim != "" {
		fmt.Fprintf(&b, "Target an unchallenged claim: %q\n\n", in.TargetClaim)
	}

	if len(in.PreviousQuestions) > 0 {
		fmt.Fprintf(&b, "Your previous questions this session:\n- %s\n\n", strings.Join(in.PreviousQuestions, "\n- "))
	} else {
		b.WriteString("You have not asked a question yet this session.\n\n")
	}

	if in.ExchangeHistory != "" {
		fmt.Fprintf(&b, "Recent exchange history:\n%s\n\n", in.ExchangeHistory)
	}
	if in.CrossAgentSummary != "" {
		fmt.Fprintf(&b, "Other panelists have recently asked:\n%s\nYou may reference or build upon their concerns.\n\n", in.CrossAgentSummary)
	}
	if in.PresenterProfile != "" {
		fmt.Fprintf(&b, "Your read on the presenter so far:\n%s\n\n", in.PresenterProfile)
	}

	b.WriteString("Ask ONE focused question to the presenter now. ")
	b.WriteString("Do NOT start with your name or title. ")
	b.WriteString("Speak directly, as if addressing the presenter in the room.")

	return b.String(), nil
}

// EvaluationPromptInput carries the fields BuildEvaluationPrompt needs to
// judge a presenter's response within an exchange.
type EvaluationPromptInput struct {
	PersonaID       string
	QuestionText    string
	ExchangeHistory string
	TurnNumber      int
	MaxTurns        int
}

// BuildEvaluationPrompt assembles the evaluation prompt used by
// AgentRunner.HandleExchangeFollowUp. No original-source file defines
// this prompt (the distilled spec describes only its required content —
// persona plus the persona's satisfaction-criteria section plus the
// exchange transcript); authored here following the same persona +
// template composition convention as BuildQuestionPrompt.
func BuildEvaluationPrompt(templates *TemplateSet, in EvaluationPromptInput) (string, error) {
	persona, ok := Roster[in.PersonaID]
	if !ok {
		return "", fmt.Errorf("agent prompts: unknown persona %q", in.PersonaID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s (%s), assessing a presenter's response in a live boardroom exchange.\n\n", persona.Name, persona.Role, persona.Title)

	if criteria := templates.Get(in.PersonaID, "domain-knowledge"); criteria != "" {
		b.WriteString(criteria)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Your original question: %q\n\n", in.QuestionText)
	fmt.Fprintf(&b, "Exchange so far (turn %d of a %d-turn budget):\n%s\n\n", in.TurnNumber, in.MaxTurns, in.ExchangeHistory)

	b.WriteString("Decide whether the presenter's most recent response satisfies your question, " +
		"per your satisfaction criteria above.\n\n")
	b.WriteString("Respond with ONLY a JSON object of this shape:\n" +
		`{"verdict": "SATISFIED" | "FOLLOW_UP" | "ESCALATE", "reasoning": "<one sentence>", "follow_up": "<next question, or empty if SATISFIED>"}` + "\n")

	return b.String(), nil
}

// FormatExchangeHistory renders the last n exchanges (question + outcome)
// for prompt inclusion, grounded on agent_runner.py's
// _format_exchange_history.
func FormatExchangeHistory(questions []string, outcomes []string, n int) string {
	if len(questions) == 0 {
		return ""
	}
	start := 0
	if len(questions) > n {
		start = len(questions) - n
	}
	var lines []string
	for i := start; i < len(questions); i++ {
		outcome := ""
		if i < len(outcomes) {
			outcome = outcomes[i]
		}
		lines = append(lines, fmt.Sprintf("Q: %s\nOutcome: %s", questions[i], outcome))
	}
	return strings.Join(lines, "\n\n")
}

// FormatCrossAgentSummary renders the last n other-agent questions,
// truncated to 120 chars each, grounded on
// agent_runner.py's _format_cross_agent_summary.
func FormatCrossAgentSummary(entries []CrossAgentQuestion, n int) string {
	if len(entries) == 0 {
		return ""
	}
	start := 0
	if len(entries) > n {
		start = len(entries) - n
	}
	var lines []string
	for _, e := range entries[start:] {
		text := e.Text
		if len(text) > 120 {
			text = text[:120] + "..."
		}
		name := e.AgentID
		if p, ok := Roster[e.AgentID]; ok {
			name = p.Name
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", name, text))
	}
	return strings.Join(lines, "\n")
}

// CrossAgentQuestion is one other agent's recorded question, used for
// the cross-agent-summary prompt section.
type CrossAgentQuestion struct {
	AgentID string
	Text    string
}
