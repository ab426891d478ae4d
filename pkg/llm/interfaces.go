// Package llm declares the abstract capabilities this module consumes
// (LLM, TTS, Sink, Store) per SPEC_FULL.md §6 — the core never depends
// on a specific vendor; concrete adapters live under pkg/providers.
package llm

import "context"

// Message is one turn in a chat-style prompt.
type Message struct {
	Role    string
	Content string
}

// VerdictKind is the LLM's classification of a presenter's response
// within an exchange.
type VerdictKind string

const (
	VerdictSatisfied VerdictKind = "SATISFIED"
	VerdictFollowUp  VerdictKind = "FOLLOW_UP"
	VerdictEscalate  VerdictKind = "ESCALATE"
)

// Verdict is the parsed result of LLM.EvaluateResponse.
type Verdict struct {
	Verdict   VerdictKind
	Reasoning string
	FollowUp  string
}

// LLM is the abstract language-model capability. Concrete vendor
// adapters live under pkg/providers/llm.
type LLM interface {
	// GenerateQuestion is the non-streaming convenience call used by
	// claim extraction, fallback generation paths, and tests.
	GenerateQuestion(ctx context.Context, systemPrompt string, messages []Message) (string, error)

	// GenerateQuestionStreaming streams tokens as they arrive. The
	// returned channel is closed when the stream ends (normally or via
	// ctx cancellation); errCh carries at most one error and is closed
	// just before tokens closes, so once tokens is closed errCh can be
	// read without blocking.
	GenerateQuestionStreaming(ctx context.Context, systemPrompt string, messages []Message) (tokens <-chan string, errCh <-chan error)

	// EvaluateResponse judges a presenter's response within an exchange
	// and returns a structured verdict. LLM failure must be surfaced as
	// an error; callers treat it as SATISFIED per SPEC_FULL.md §7.
	EvaluateResponse(ctx context.Context, systemPrompt, exchangeText string) (Verdict, error)

	// GenerateDebrief is out of core scope (post-session coaching
	// report generation) but kept on the interface since the original
	// system's LLM client exposes it and a concrete adapter may serve an
	// external debrief generator without a second client.
	GenerateDebrief(ctx context.Context, systemPrompt string, sessionData map[string]any, maxTokens int) (string, error)
}

// TTS is the abstract speech-synthesis capability. Synthesize must be
// idempotent for the same text (content-hashed caching is expected of
// the adapter, not the caller).
type TTS interface {
	Synthesize(ctx context.Context, agentID, text, sessionID string) (audioURL string, err error)
}

// Sink is the abstract outbound event emitter to clients. Implementations
// must be safe for concurrent use (may serialize internally).
type Sink interface {
	Emit(ctx context.Context, eventName string, payload map[string]any) error
}

// Store is the abstract persistence capability for diagnostic,
// fire-and-forget transcript logging. Never awaited from a hot path.
type Store interface {
	RecordTranscriptEntry(ctx context.Context, sessionID string, index int, entry map[string]any) error
}
