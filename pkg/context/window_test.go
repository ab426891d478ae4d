package context

import (
	"strings"
	"testing"
)

func TestAddSegmentExtractsKeyClaim(t *testing.T) {
	w := New()
	w.AddSegment("we will grow revenue by 40% this year", 1.0)
	w.AddSegment("good morning everyone", 2.0)

	ctx := w.ContextForAgent(0, nil, 3.0)
	if len(ctx.KeyClaims) != 1 {
		t.Fatalf("expected 1 key claim, got %d: %v", len(ctx.KeyClaims), ctx.KeyClaims)
	}
}

func TestSlideChangeSummarizesOutgoingSlide(t *testing.T) {
	w := New()
	slides := []Slide{{Title: "Intro"}, {Title: "Market"}}
	w.AddSegment("our addressable market is $4B and growing", 1.0)
	w.OnSlideChange(1, slides)

	ctx := w.ContextForAgent(1, slides, 5.0)
	if !strings.Contains(ctx.PresentationSummary, "Slide 1: Intro") {
		t.Fatalf("expected summary to mention outgoing slide, got %q", ctx.PresentationSummary)
	}
}

func TestSlideSummarizedOnlyOnce(t *testing.T) {
	w := New()
	slides := []Slide{{Title: "Intro"}, {Title: "Market"}, {Title: "Team"}}
	w.AddSegment("intro content", 1.0)
	w.OnSlideChange(1, slides)
	w.OnSlideChange(1, slides) // same slide, no-op transition in this sequence

	ctx := w.ContextForAgent(1, slides, 5.0)
	count := strings.Count(ctx.PresentationSummary, "Slide 1:")
	if count != 1 {
		t.Fatalf("expected slide 1 summarized exactly once, got %d times", count)
	}
}

func TestAllSlidesContextMarksCurrentAndUpcoming(t *testing.T) {
	w := New()
	slides := []Slide{{Title: "Intro"}, {Title: "Market"}, {Title: "Team"}}
	w.AddSegment("intro remarks", 1.0)

	ctx := w.ContextForAgent(0, slides, 2.0)
	if !strings.Contains(ctx.AllSlidesContext, "<-- CURRENT") {
		t.Fatal("expected current-slide marker in all-slides context")
	}
	if !strings.Contains(ctx.AllSlidesContext, "(upcoming)") {
		t.Fatal("expected upcoming placeholder for not-yet-reached slides")
	}
}

func TestTranscriptTextFullWhenShort(t *testing.T) {
	w := New()
	w.AddSegment("a short remark", 1.0)
	ctx := w.ContextForAgent(0, nil, 2.0)
	if ctx.TranscriptText != "a short remark" {
		t.Fatalf("expected full transcript for a short session, got %q", ctx.TranscriptText)
	}
}

func TestTranscriptTextCompactsWhenLong(t *testing.T) {
	w := New()
	longText := strings.Repeat("the model assumes steady state growth. ", 300)
	w.AddSegment(longText, 0)
	w.AddSegment("a very recent remark about the current quarter", 1000)

	ctx := w.ContextForAgent(0, nil, 1001)
	if !strings.Contains(ctx.TranscriptText, "[Recent transcript:]") {
		t.Fatal("expected compacted transcript to separate a recent section")
	}
}
