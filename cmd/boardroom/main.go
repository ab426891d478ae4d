// Command boardroom drives one boardroom Q&A session from a canned
// presenter transcript, wiring the EventBus, SessionContext, STTGate,
// ContextWindow, AgentRunners, Coordinator, and ClaimExtractor together
// with the vendor providers selected by environment variable.
//
// This binary is a CLI session driver, not a production service: slide
// parsing, HTTP/WebSocket transport, and persistence are external
// collaborators out of scope here, so the demo substitutes a canned
// slide deck and a file-based transcript source for a live presenter.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/semaphore"

	"github.com/lokutor-ai/boardroom-runtime/pkg/agent"
	"github.com/lokutor-ai/boardroom-runtime/pkg/bus"
	"github.com/lokutor-ai/boardroom-runtime/pkg/claims"
	"github.com/lokutor-ai/boardroom-runtime/pkg/config"
	pkgcontext "github.com/lokutor-ai/boardroom-runtime/pkg/context"
	"github.com/lokutor-ai/boardroom-runtime/pkg/coordinator"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llm"
	"github.com/lokutor-ai/boardroom-runtime/pkg/logging"
	llmProvider "github.com/lokutor-ai/boardroom-runtime/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/boardroom-runtime/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/boardroom-runtime/pkg/providers/tts"
	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
	"github.com/lokutor-ai/boardroom-runtime/pkg/sttgate"
)

// demoSlides stands in for the deck-manifest collaborator spec.md
// places out of scope: enough structure to exercise claim extraction
// and slide-change handling without a real parser.
var demoSlides = []pkgcontext.Slide{
	{Title: "Market Opportunity", Body: "We estimate a $4.2B addressable market growing 18% annually.", Notes: "Lead with the TAM slide."},
	{Title: "Q3 Results", Body: "Revenue grew 32% quarter over quarter to $9.1M, with 140% net retention.", Notes: "Emphasize retention."},
	{Title: "Go-To-Market", Body: "We will close 25 enterprise logos by end of year, expanding the sales team to 40 reps.", Notes: "Hiring plan detail on request."},
	{Title: "Roadmap", Body: "The platform will support real-time collaboration within two quarters.", Notes: "Keep this high-level."},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	log := logging.NewStdLogger()

	if err := run(log); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(log logging.Logger) error {
	cfg, err := config.Load(os.Getenv("SESSION_CONFIG"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInitFailed, err)
	}

	templates, err := agent.LoadTemplates(os.Getenv("AGENT_TEMPLATES_DIR"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInitFailed, err)
	}

	model, err := selectLLM()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInitFailed, err)
	}
	tts, err := selectTTS()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInitFailed, err)
	}

	sessionID := fmt.Sprintf("demo-%d", time.Now().Unix())
	sessCtx := session.New(sessionID)
	b := bus.New(log)
	window := pkgcontext.New()
	sink := &consoleSink{log: log}
	store := &consoleStore{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log.Info("extracting claims: slides=%d", len(demoSlides))
	claimsBySlide := claims.Extract(ctx, model, demoSlides, log)
	sessCtx.ReplaceClaims(claimsBySlide)
	b.Publish(bus.Event{Type: bus.ClaimsReady, Timestamp: time.Now(), Source: "claim_extractor"})

	sem := semaphore.NewWeighted(2)
	runners := make(map[string]*agent.Runner, len(cfg.Agents))
	intensity := make(map[string]agent.Intensity, len(cfg.Agents))

	for i, ac := range cfg.Agents {
		persona, ok := agent.Roster[ac.PersonaID]
		if !ok {
			log.Warn("unknown persona in config, skipping: persona_id=%s", ac.PersonaID)
			continue
		}
		agentIntensity := cfg.ResolveIntensity(ac)
		runnerCfg := agent.Config{WarmupWords: cfg.AgentWarmupWords, DurationSecs: cfg.DurationSecs}
		r := agent.NewRunner(persona.ID, persona.ID, agentIntensity, i, runnerCfg,
			b, sessCtx, window, demoSlides, model, tts, templates, sem, log)
		runners[persona.ID] = r
		intensity[persona.ID] = agentIntensity
		go r.Run(ctx)
	}

	coord := coordinator.New(sessionID, b, sessCtx, tts, sink, store, runners, intensity,
		coordinator.Config{DurationSecs: cfg.DurationSecs}, log)
	go coord.Run(ctx)

	start := time.Now()
	onFinal := func(seg sttgate.Segment) {
		elapsed := time.Since(start).Seconds()
		window.AddSegment(seg.Text, elapsed)
		b.Publish(bus.Event{Type: bus.TranscriptUpdate, Timestamp: time.Now(), Source: "presenter",
			Data: map[string]any{"text": seg.Text, "elapsed_seconds": elapsed}})
		log.Info("presenter: %s", seg.Text)
	}
	onInterim := func(seg sttgate.Segment) {
		b.Publish(bus.Event{Type: bus.TranscriptInterim, Timestamp: time.Now(), Source: "presenter",
			Data: map[string]any{"text": seg.Text}})
	}
	gate, err := selectGate(onFinal, onInterim, log)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInitFailed, err)
	}
	if err := gate.Start(ctx); err != nil {
		return fmt.Errorf("%w: starting stt gate: %v", ErrSessionInitFailed, err)
	}
	defer gate.Stop()

	pcmPath := os.Getenv("PRESENTER_PCM")
	if pcmPath == "" {
		return fmt.Errorf("%w: PRESENTER_PCM must name a canned 16kHz/16-bit/mono raw PCM file", ErrSessionInitFailed)
	}
	return drivePCM(ctx, pcmPath, gate, b, window, cfg.DurationSecs, start, log)
}

// drivePCM stands in for the live-microphone loop the teacher binary
// drove through malgo: it reads a canned raw PCM file in ~100ms frames
// and pushes each through the STTGate exactly as a live capture device
// would, letting the gate's VAD and chosen STT backend do real
// transcription work. Slides advance on a fixed fraction of the
// configured session duration, since there is no deck parser to report
// real advances.
const pcmFrameBytes = 3200 // ~100ms at 16kHz, 16-bit mono

func drivePCM(ctx context.Context, path string, gate *sttgate.Gate, b *bus.EventBus, window *pkgcontext.Window, durationSecs float64, start time.Time, log logging.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening presenter pcm source: %w", err)
	}
	defer f.Close()

	slideInterval := durationSecs / float64(len(demoSlides))
	if slideInterval <= 0 {
		slideInterval = 60
	}
	currentSlide := 0

	frame := make([]byte, pcmFrameBytes)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := f.Read(frame)
		if n > 0 {
			gate.PushFrame(ctx, frame[:n])

			elapsed := time.Since(start).Seconds()
			if target := int(elapsed / slideInterval); target > currentSlide && target < len(demoSlides) {
				currentSlide = target
				window.OnSlideChange(currentSlide, demoSlides)
				b.Publish(bus.Event{Type: bus.SlideChanged, Timestamp: time.Now(), Source: "presenter",
					Data: map[string]any{"slide_index": currentSlide}})
			}
		}
		if err != nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	b.Publish(bus.Event{Type: bus.SessionEnding, Timestamp: time.Now(), Source: "presenter"})
	return nil
}

// selectLLM, selectSTT, selectTTS mirror the teacher's env-var provider
// selection, generalized from one hardcoded voice-bot pairing to the
// full vendor matrix each provider package now offers.
func selectLLM() (llm.LLM, error) {
	switch name := providerName("LLM_PROVIDER", "groq"); name {
	case "openai":
		key, err := requireKey("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return llmProvider.NewOpenAILLM(key, "gpt-4o"), nil
	case "anthropic":
		key, err := requireKey("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return llmProvider.NewAnthropicLLM(key, "claude-3-5-sonnet-20241022"), nil
	case "google":
		key, err := requireKey("GOOGLE_API_KEY")
		if err != nil {
			return nil, err
		}
		return llmProvider.NewGoogleLLM(key, "gemini-1.5-flash"), nil
	default:
		key, err := requireKey("GROQ_API_KEY")
		if err != nil {
			return nil, err
		}
		return llmProvider.NewGroqLLM(key, "llama-3.3-70b-versatile"), nil
	}
}

// selectGate builds the STT gate for the configured transport. STT_TRANSPORT
// defaults to "batch" (one Transcribe call per utterance); "streaming"
// drives a long-lived StreamingBackend session with the gate's
// cooldown-limited reconnect policy, per SPEC_FULL.md §4.3.
func selectGate(onFinal, onInterim sttgate.OnSegment, log logging.Logger) (*sttgate.Gate, error) {
	if providerName("STT_TRANSPORT", "batch") == "streaming" {
		backend, err := selectStreamingSTT()
		if err != nil {
			return nil, err
		}
		return sttgate.NewStreaming(backend, onFinal, onInterim, log), nil
	}
	backend, err := selectSTT()
	if err != nil {
		return nil, err
	}
	return sttgate.NewBatch(backend, onFinal, onInterim, log), nil
}

func selectStreamingSTT() (sttgate.StreamingBackend, error) {
	switch name := providerName("STT_PROVIDER", "deepgram"); name {
	case "deepgram":
		key, err := requireKey("DEEPGRAM_API_KEY")
		if err != nil {
			return nil, err
		}
		return sttProvider.NewDeepgramStreamingSTT(key), nil
	default:
		return nil, fmt.Errorf("streaming stt transport is only wired for deepgram, got provider=%s", name)
	}
}

func selectSTT() (sttgate.BatchBackend, error) {
	switch name := providerName("STT_PROVIDER", "groq"); name {
	case "openai":
		key, err := requireKey("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return sttProvider.NewOpenAISTT(key, "whisper-1"), nil
	case "deepgram":
		key, err := requireKey("DEEPGRAM_API_KEY")
		if err != nil {
			return nil, err
		}
		return sttProvider.NewDeepgramSTT(key), nil
	case "assemblyai":
		key, err := requireKey("ASSEMBLYAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return sttProvider.NewAssemblyAISTT(key), nil
	default:
		key, err := requireKey("GROQ_API_KEY")
		if err != nil {
			return nil, err
		}
		return sttProvider.NewGroqSTT(key, "whisper-large-v3-turbo"), nil
	}
}

func selectTTS() (llm.TTS, error) {
	key, err := requireKey("LOKUTOR_API_KEY")
	if err != nil {
		return nil, err
	}
	cacheDir := os.Getenv("TTS_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "./tts-cache"
	}
	publicBaseURL := os.Getenv("TTS_PUBLIC_BASE_URL")
	if publicBaseURL == "" {
		publicBaseURL = "http://localhost:8080/audio"
	}
	return ttsProvider.NewLokutorTTS(key, cacheDir, publicBaseURL), nil
}

func providerName(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func requireKey(envVar string) (string, error) {
	v := os.Getenv(envVar)
	if v == "" {
		return "", fmt.Errorf("%s must be set", envVar)
	}
	return v, nil
}

// consoleSink and consoleStore satisfy llm.Sink / llm.Store by logging:
// the real outbound-event transport (WebSocket/HTTP to a client) and
// persistence layer are external collaborators out of scope here.
type consoleSink struct {
	log logging.Logger
}

func (s *consoleSink) Emit(_ context.Context, eventName string, payload map[string]any) error {
	s.log.Info("sink event=%s payload=%v", eventName, payload)
	return nil
}

type consoleStore struct {
	log logging.Logger
}

func (s *consoleStore) RecordTranscriptEntry(_ context.Context, sessionID string, index int, entry map[string]any) error {
	s.log.Debug("store session=%s index=%d entry=%v", sessionID, index, entry)
	return nil
}
