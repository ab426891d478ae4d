package llmtext

import (
	"strings"
	"testing"
)

func TestSplitBasic(t *testing.T) {
	got := Split("What is your revenue growth? Walk me through the model.")
	want := []string{"What is your revenue growth?", "Walk me through the model."}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSplitIgnoresAbbreviations(t *testing.T) {
	got := Split("Dr. Smith reviewed the numbers. He approved them.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences (abbreviation not a boundary), got %d: %v", len(got), got)
	}
}

func TestSplitMergesShortFragments(t *testing.T) {
	got := Split("Yes. That is correct, the model holds under stress testing.")
	for _, s := range got[:len(got)-1] {
		if len(s) < minChunkLen {
			t.Errorf("non-final sentence %q shorter than minChunkLen", s)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	text := "This is a long enough first sentence. And a second one follows here."
	got := Split(text)
	joined := strings.Join(got, " ")
	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	if normalize(joined) != normalize(text) {
		t.Fatalf("round trip mismatch: got %q want %q", normalize(joined), normalize(text))
	}
}

func TestExtractorIncremental(t *testing.T) {
	var ex Extractor
	var sentences []string

	chunks := []string{"What is ", "your growth ", "rate this quarter? ", "And how confident ", "are you in it?"}
	for _, c := range chunks {
		for {
			s, ok := ex.Feed(c)
			c = ""
			if !ok {
				break
			}
			sentences = append(sentences, s)
		}
	}
	if rest := ex.Flush(); rest != "" {
		sentences = append(sentences, rest)
	}

	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences extracted, got %d: %v", len(sentences), sentences)
	}
}

func TestExtractorFlushReturnsRemainder(t *testing.T) {
	var ex Extractor
	ex.Feed("no terminal punctuation here")
	rest := ex.Flush()
	if rest != "no terminal punctuation here" {
		t.Fatalf("expected flush to return buffered remainder, got %q", rest)
	}
	if second := ex.Flush(); second != "" {
		t.Fatalf("expected flush to clear the buffer, got %q", second)
	}
}
