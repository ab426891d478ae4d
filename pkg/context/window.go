// Package context implements the sliding transcript window used to
// assemble each agent's prompt: per-slide speech tracking, a running
// presentation summary, key-claim extraction, and a recency-based
// transcript compaction strategy for long sessions.
package context

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Slide is the minimal deck-manifest shape the window needs; the full
// deck-manifest/slide-parsing format is an external collaborator (out of
// scope per SPEC_FULL.md §1).
type Slide struct {
	Title   string
	Body    string
	Notes   string
}

// segment is one piece of transcribed presenter speech.
type segment struct {
	text      string
	startTime float64 // elapsed seconds
}

const maxTranscriptChars = 8000
const recentWindowSecs = 300
const slideSummaryTruncate = 500
const currentSlideSpeechCap = 2000
const allSlidesSnippetCap = 200

var keyClaimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+%`),
	regexp.MustCompile(`(?i)\$[\d,.]+`),
	regexp.MustCompile(`(?i)\d+[BMK]\b`),
	regexp.MustCompile(`(?i)\d+x\b`),
	regexp.MustCompile(`(?i)will\s+\w+`),
	regexp.MustCompile(`(?i)expect\w*`),
	regexp.MustCompile(`(?i)project\w*`),
	regexp.MustCompile(`(?i)target\w*`),
}

// Window is the per-session sliding context tracker. Owned exclusively by
// whichever component feeds it transcript segments and slide changes
// (the demo driver in cmd/boardroom, in this module's wiring); reads are
// safe from any goroutine.
type Window struct {
	mu sync.Mutex

	maxTranscriptChars int
	keyClaims          []string
	fullTranscript     []segment
	currentSlideIndex  int
	slideSpeech        map[int][]string
	presentationSummary []string
	summarizedSlides    map[int]bool
}

// New creates an empty Window.
func New() *Window {
	return &Window{
		maxTranscriptChars: maxTranscriptChars,
		slideSpeech:        make(map[int][]string),
		summarizedSlides:   make(map[int]bool),
	}
}

// AddSegment records one piece of presenter speech against the current
// slide and extracts a key claim if the text matches one of the claim
// patterns.
func (w *Window) AddSegment(text string, elapsedSeconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.fullTranscript = append(w.fullTranscript, segment{text: text, startTime: elapsedSeconds})

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	w.slideSpeech[w.currentSlideIndex] = append(w.slideSpeech[w.currentSlideIndex], trimmed)

	if containsKeyClaim(trimmed) {
		w.keyClaims = append(w.keyClaims, trimmed)
	}
}

func containsKeyClaim(text string) bool {
	for _, p := range keyClaimPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// OnSlideChange summarizes the outgoing slide's accumulated speech into
// the running presentation summary (once per slide), then advances the
// current slide index.
func (w *Window) OnSlideChange(newSlideIndex int, slides []Slide) {
	w.mu.Lock()
	defer w.mu.Unlock()

	old := w.currentSlideIndex
	if !w.summarizedSlides[old] {
		if _, ok := w.slideSpeech[old]; ok {
			w.summarizeSlide(old, slides)
		}
	}
	w.currentSlideIndex = newSlideIndex
}

func (w *Window) summarizeSlide(slideIndex int, slides []Slide) {
	w.summarizedSlides[slideIndex] = true

	title := fmt.Sprintf("Slide %d", slideIndex+1)
	if slideIndex >= 0 && slideIndex < len(slides) && slides[slideIndex].Title != "" {
		title = slides[slideIndex].Title
	}

	speeches := w.slideSpeech[slideIndex]
	if len(speeches) == 0 {
		return
	}
	combined := strings.Join(speeches, " ")
	if len(combined) > slideSummaryTruncate {
		combined = combined[:slideSummaryTruncate] + "..."
	}

	w.presentationSummary = append(w.presentationSummary,
		fmt.Sprintf("[Slide %d: %s] %s", slideIndex+1, title, combined))
}

// AgentContext is the assembled payload handed to an AgentRunner's prompt
// builder.
type AgentContext struct {
	CurrentSlideText     string
	CurrentSlideTitle    string
	CurrentSlideNotes    string
	TranscriptText       string
	KeyClaims            []string
	ElapsedSeconds       float64
	PresentationSummary  string
	CurrentSlideSpeech   string
	AllSlidesContext     string
}

// ContextForAgent assembles the full prompt-ready context for one agent's
// next question, given the current slide index, the deck's slides, and
// elapsed session time.
func (w *Window) ContextForAgent(currentSlideIndex int, slides []Slide, elapsedSeconds float64) AgentContext {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.currentSlideIndex = currentSlideIndex

	var cur *Slide
	if currentSlideIndex >= 0 && currentSlideIndex < len(slides) {
		cur = &slides[currentSlideIndex]
	}

	claims := w.keyClaims
	if len(claims) > 20 {
		claims = claims[len(claims)-20:]
	}
	claimsCopy := make([]string, len(claims))
	copy(claimsCopy, claims)

	ctx := AgentContext{
		TranscriptText:      w.buildTranscriptText(elapsedSeconds),
		KeyClaims:           claimsCopy,
		ElapsedSeconds:      elapsedSeconds,
		PresentationSummary: strings.Join(w.presentationSummary, "\n"),
		CurrentSlideSpeech:  w.currentSlideSpeechText(currentSlideIndex),
		AllSlidesContext:    w.buildAllSlidesContext(currentSlideIndex, slides),
	}
	if cur != nil {
		ctx.CurrentSlideText = formatSlide(*cur)
		ctx.CurrentSlideTitle = cur.Title
		ctx.CurrentSlideNotes = cur.Notes
	}
	return ctx
}

func formatSlide(s Slide) string {
	var parts []string
	if s.Title != "" {
		parts = append(parts, "Title: "+s.Title)
	}
	if s.Body != "" {
		parts = append(parts, "Content: "+s.Body)
	}
	return strings.Join(parts, "\n")
}

func (w *Window) currentSlideSpeechText(slideIndex int) string {
	speeches := w.slideSpeech[slideIndex]
	if len(speeches) == 0 {
		return ""
	}
	combined := strings.Join(speeches, " ")
	if len(combined) > currentSlideSpeechCap {
		combined = "..." + combined[len(combined)-currentSlideSpeechCap:]
	}
	return combined
}

func (w *Window) buildAllSlidesContext(currentSlideIndex int, slides []Slide) string {
	if len(slides) == 0 {
		return ""
	}
	var lines []string
	for i, s := range slides {
		title := s.Title
		if title == "" {
			title = fmt.Sprintf("Slide %d", i+1)
		}
		marker := ""
		if i == currentSlideIndex {
			marker = " <-- CURRENT"
		}

		speeches := w.slideSpeech[i]
		if len(speeches) > 0 {
			combined := strings.Join(speeches, " ")
			if len(combined) > allSlidesSnippetCap {
				combined = combined[:allSlidesSnippetCap] + "..."
			}
			lines = append(lines, fmt.Sprintf("  Slide %d: %s%s — Presenter said: %q", i+1, title, marker, combined))
			continue
		}
		if i <= currentSlideIndex {
			lines = append(lines, fmt.Sprintf("  Slide %d: %s%s — (no speech recorded)", i+1, title, marker))
		} else {
			lines = append(lines, fmt.Sprintf("  Slide %d: %s — (upcoming)", i+1, title))
		}
	}
	return strings.Join(lines, "\n")
}

func (w *Window) buildTranscriptText(elapsedSeconds float64) string {
	if len(w.fullTranscript) == 0 {
		return ""
	}

	full := formatSegments(w.fullTranscript)
	if len(full) <= w.maxTranscriptChars {
		return full
	}

	cutoff := elapsedSeconds - recentWindowSecs
	var recent, older []segment
	for _, s := range w.fullTranscript {
		if s.startTime >= cutoff {
			recent = append(recent, s)
		} else {
			older = append(older, s)
		}
	}

	var parts []string
	if len(older) > 0 {
		olderText := formatSegments(older)
		if len(olderText) > 2000 {
			parts = append(parts, "[Earlier in the presentation, the presenter discussed:]")
			claims := w.keyClaims
			if len(claims) > 10 {
				claims = claims[:10]
			}
			for _, c := range claims {
				parts = append(parts, "- "+c)
			}
			parts = append(parts, "")
		} else {
			parts = append(parts, olderText)
		}
	}
	if len(recent) > 0 {
		parts = append(parts, "[Recent transcript:]")
		parts = append(parts, formatSegments(recent))
	}
	return strings.Join(parts, "\n")
}

func formatSegments(segs []segment) string {
	var lines []string
	for _, s := range segs {
		if t := strings.TrimSpace(s.text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// Elapsed is a small helper for callers computing elapsed seconds from a
// session start time; kept here so callers in pkg/agent and
// pkg/coordinator share one definition of "elapsed".
func Elapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}
