package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	pkgllm "github.com/lokutor-ai/boardroom-runtime/pkg/llm"
)

// GoogleLLM adapts the Gemini generateContent API to pkg/llm.LLM. Gemini's
// REST surface used here has no SSE streaming variant, so
// GenerateQuestionStreaming delivers the full response as a single token.
type GoogleLLM struct {
	apiKey string
	url    string
	model  string
}

func NewGoogleLLM(apiKey string, model string) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		model:  model,
	}
}

func (l *GoogleLLM) Name() string { return "google-llm" }

type googlePart struct {
	Text string `json:"text"`
}

type googleMessage struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

func (l *GoogleLLM) GenerateQuestion(ctx context.Context, systemPrompt string, messages []pkgllm.Message) (string, error) {
	var googleMessages []googleMessage
	if systemPrompt != "" {
		googleMessages = append(googleMessages, googleMessage{Role: "user", Parts: []googlePart{{Text: systemPrompt}}})
	}
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			role = "user"
		}
		if role == "assistant" {
			role = "model"
		}
		googleMessages = append(googleMessages, googleMessage{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}

	payload := map[string]interface{}{"contents": googleMessages}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url+"?key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []googlePart `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from google llm")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (l *GoogleLLM) GenerateQuestionStreaming(ctx context.Context, systemPrompt string, messages []pkgllm.Message) (<-chan string, <-chan error) {
	tokens := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errCh)

		text, err := l.GenerateQuestion(ctx, systemPrompt, messages)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case tokens <- text:
		case <-ctx.Done():
		}
	}()

	return tokens, errCh
}

func (l *GoogleLLM) EvaluateResponse(ctx context.Context, systemPrompt, exchangeText string) (pkgllm.Verdict, error) {
	text, err := l.GenerateQuestion(ctx, systemPrompt, []pkgllm.Message{{Role: "user", Content: exchangeText}})
	if err != nil {
		return pkgllm.Verdict{}, err
	}
	return parseVerdict(text)
}

func (l *GoogleLLM) GenerateDebrief(ctx context.Context, systemPrompt string, sessionData map[string]any, maxTokens int) (string, error) {
	summary, err := json.Marshal(sessionData)
	if err != nil {
		return "", err
	}
	return l.GenerateQuestion(ctx, systemPrompt, []pkgllm.Message{{Role: "user", Content: string(summary)}})
}
