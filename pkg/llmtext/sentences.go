// Package llmtext splits streaming LLM text into speakable sentences, so
// an AgentRunner can fire TTS per sentence as soon as it completes rather
// than waiting for the full response.
package llmtext

import (
	"regexp"
	"strings"
)

// minChunkLen is the minimum length a split fragment may stand on its own;
// shorter fragments merge into the previous sentence.
const minChunkLen = 10

// abbreviations whose trailing period must not be treated as a sentence
// boundary.
var abbreviations = map[string]bool{}

func init() {
	for _, a := range []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "ave", "blvd",
		"gen", "gov", "sgt", "cpl", "pvt", "rev", "hon", "inc", "corp",
		"ltd", "co", "vs", "etc", "approx", "dept", "est", "vol",
		"u.s", "u.k", "e.u", "e.g", "i.e",
	} {
		abbreviations[a] = true
	}
}

var sentenceEndRe = regexp.MustCompile(`[.?!](?:\s|$)`)

// endsWithAbbreviation reports whether candidate's last "word" before its
// terminal punctuation is a known abbreviation.
func endsWithAbbreviation(candidate string) bool {
	trimmed := strings.TrimRight(candidate, ".?! \t\n")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return false
	}
	last := strings.ToLower(fields[len(fields)-1])
	last = strings.Trim(last, ".")
	return abbreviations[last]
}

// Split breaks text into sentences on ., ?, ! boundaries, treating ~30
// canonical abbreviations as non-terminal, and merging any fragment
// shorter than minChunkLen characters into the preceding sentence.
// join(Split(t)) reproduces t up to whitespace normalization; the only
// sentence shorter than minChunkLen allowed in the result is the sole
// sentence when the whole text is shorter than that.
func Split(text string) []string {
	var sentences []string
	remaining := text
	pos := 0

	for {
		loc := sentenceEndRe.FindStringIndex(remaining[pos:])
		if loc == nil {
			break
		}
		end := pos + loc[1]
		candidate := strings.TrimSpace(remaining[:end])
		if candidate == "" {
			pos = end
			continue
		}
		if endsWithAbbreviation(remaining[:pos+loc[0]+1]) {
			pos = end
			continue
		}
		if len(sentences) == 0 && len(candidate) < minChunkLen {
			// no previous sentence to merge into: carry it into the next one
			pos = end
			continue
		}
		sentences = appendMerged(sentences, candidate)
		remaining = remaining[end:]
		pos = 0
	}

	if rest := strings.TrimSpace(remaining); rest != "" {
		sentences = appendMerged(sentences, rest)
	}

	if len(sentences) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}
	return sentences
}

func appendMerged(sentences []string, candidate string) []string {
	if len(candidate) < minChunkLen && len(sentences) > 0 {
		sentences[len(sentences)-1] = strings.TrimSpace(sentences[len(sentences)-1] + " " + candidate)
		return sentences
	}
	return append(sentences, candidate)
}

// Extractor incrementally pulls complete sentences out of a growing
// buffer fed from an LLM token stream, generalizing the original
// async-generator streaming shape to Feed/Flush.
type Extractor struct {
	buf strings.Builder
}

// Feed appends chunk to the internal buffer and returns the first
// complete sentence if one is now available, consuming it from the
// buffer. ok is false if no complete sentence is available yet.
func (x *Extractor) Feed(chunk string) (sentence string, ok bool) {
	x.buf.WriteString(chunk)
	buffered := x.buf.String()

	s, rest, found := extractFirstSentence(buffered)
	if !found {
		return "", false
	}
	x.buf.Reset()
	x.buf.WriteString(rest)
	return s, true
}

// Flush returns and clears any trailing text that never completed a
// sentence boundary — called once the stream ends.
func (x *Extractor) Flush() string {
	rest := strings.TrimSpace(x.buf.String())
	x.buf.Reset()
	return rest
}

// extractFirstSentence mirrors Split's rules but stops at the first
// complete, non-abbreviation, >=minChunkLen sentence, returning the
// unconsumed remainder.
func extractFirstSentence(buffered string) (sentence, rest string, found bool) {
	pos := 0
	for {
		loc := sentenceEndRe.FindStringIndex(buffered[pos:])
		if loc == nil {
			return "", buffered, false
		}
		end := pos + loc[1]
		candidate := strings.TrimSpace(buffered[:end])
		if candidate == "" {
			pos = end
			continue
		}
		if endsWithAbbreviation(buffered[:pos+loc[0]+1]) {
			pos = end
			continue
		}
		if len(candidate) < minChunkLen {
			pos = end
			continue
		}
		return candidate, strings.TrimLeft(buffered[end:], " \t\n"), true
	}
}
