// Package claims implements the one-shot claim extractor: given a deck's
// slides, ask an LLM for the challengeable assertions on each slide,
// concurrently and defensively.
package claims

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	pkgcontext "github.com/lokutor-ai/boardroom-runtime/pkg/context"
	"github.com/lokutor-ai/boardroom-runtime/pkg/llm"
	"github.com/lokutor-ai/boardroom-runtime/pkg/logging"
	"github.com/lokutor-ai/boardroom-runtime/pkg/session"
)

// extractionPrompt mirrors the JSON contract from SPEC_FULL.md §4.7:
// a JSON array of {text, type, confidence} across five claim categories.
const extractionPrompt = `You are analyzing a single presentation slide for challengeable claims.

Extract claims that a skeptical board member could reasonably question:
financial projections, market size assertions, timeline commitments,
technical capability claims, and competitive positioning statements.

Return ONLY a JSON array of objects, each shaped as:
{"text": "<verbatim or lightly paraphrased claim>", "type": "financial|market|timeline|capability|competitive", "confidence": <0.0-1.0>}

If the slide contains no challengeable claims, return an empty array: []

Slide content:
`

type rawClaim struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Extract runs one extraction call per slide concurrently and returns a
// map from slide index to its claims. A slide whose content is too short
// to be worth extracting (<20 chars) or whose call fails or returns
// unparseable JSON contributes an empty claim list rather than aborting
// extraction for the rest.
func Extract(ctx context.Context, model llm.LLM, slides []pkgcontext.Slide, log logging.Logger) map[int][]session.Claim {
	if log == nil {
		log = &logging.NoOpLogger{}
	}

	results := make([][]session.Claim, len(slides))
	g, gctx := errgroup.WithContext(ctx)

	for i, slide := range slides {
		i, slide := i, slide
		g.Go(func() error {
			results[i] = extractSlide(gctx, model, i, slide, log)
			return nil
		})
	}
	// Per-slide failures are captured inside extractSlide as an empty
	// result and every goroutine returns nil, so Wait never reports an
	// error and one slide's failure never aborts its siblings.
	_ = g.Wait()

	out := make(map[int][]session.Claim, len(slides))
	for i, c := range results {
		out[i] = c
	}
	return out
}

func extractSlide(ctx context.Context, model llm.LLM, index int, slide pkgcontext.Slide, log logging.Logger) []session.Claim {
	content := strings.TrimSpace(slide.Title + "\n" + slide.Body + "\n" + slide.Notes)
	if len(content) < 20 {
		return nil
	}

	raw, err := model.GenerateQuestion(ctx, extractionPrompt+content, nil)
	if err != nil {
		log.Warn("claim extraction failed for slide %d: %v", index, err)
		return nil
	}

	parsedClaims, err := parseClaims(raw)
	if err != nil {
		log.Warn("claim extraction: unparseable response for slide %d: %v", index, err)
		return nil
	}
	return parsedClaims
}

func parseClaims(raw string) ([]session.Claim, error) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, errNoJSONArray
	}
	var parsed []rawClaim
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, err
	}

	out := make([]session.Claim, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, session.Claim{
			Text:       p.Text,
			Type:       session.ClaimType(p.Type),
			Confidence: p.Confidence,
		})
	}
	return out, nil
}

type claimsError string

func (e claimsError) Error() string { return string(e) }

const errNoJSONArray = claimsError("no JSON array found in response")
