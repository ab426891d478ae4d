package sttgate

import (
	"regexp"
	"strings"
)

// nonLatinScriptRe matches any character in a script the upstream STT
// backend is not configured for. Supplemented with the Bengali range per
// SPEC_FULL.md, which the Python original did not include.
var nonLatinScriptRe = regexp.MustCompile(
	"[" +
		"؀-ۿ" + // Arabic
		"฀-๿" + // Thai
		"一-鿿" + // CJK
		"぀-ゟ" + // Hiragana
		"゠-ヿ" + // Katakana
		"가-힯" + // Hangul
		"Ѐ-ӿ" + // Cyrillic
		"ऀ-ॿ" + // Devanagari
		"ঀ-৿" + // Bengali
		"]")

// inlineNoiseRe matches a bracketed noise/silence token wherever it
// appears in a transcript, not just when it is the whole string, so
// "revenue <noise> grew" strips to "revenue grew" instead of being
// rejected outright.
var inlineNoiseRe = regexp.MustCompile(`(?i)[<(\[](?:noise|silence)[>)\]]`)

// stripInlineNoise removes embedded noise/silence tokens and collapses
// the whitespace left behind.
func stripInlineNoise(text string) string {
	stripped := inlineNoiseRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

var blacklist = map[string]bool{
	"ok": true, "um": true, "uh": true, "hmm": true, "ah": true, "": true,
}

var alphaRe = regexp.MustCompile(`[A-Za-z]`)

// isNoiseTranscript reports whether a stripped transcript should still be
// dropped: a small blacklist of filler words, a non-Latin-script match,
// or fewer than 4 alphabetic characters.
func isNoiseTranscript(text string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if blacklist[cleaned] {
		return true
	}
	if nonLatinScriptRe.MatchString(cleaned) {
		return true
	}
	if len(alphaRe.FindAllString(cleaned, -1)) < 4 {
		return true
	}
	return false
}

// FilterTranscript strips embedded noise/silence tokens and returns the
// remaining text if it passes the post-filters, or "" if it should be
// rejected. filter(filter(x)) == filter(x): stripping is idempotent and a
// filtered-out empty string filters to itself.
func FilterTranscript(text string) string {
	stripped := stripInlineNoise(text)
	if isNoiseTranscript(stripped) {
		return ""
	}
	return stripped
}
