package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgllm "github.com/lokutor-ai/boardroom-runtime/pkg/llm"
)

// AnthropicLLM adapts the Claude messages API to pkg/llm.LLM.
type AnthropicLLM struct {
	apiKey string
	url    string
	model  string
}

func NewAnthropicLLM(apiKey string, model string) *AnthropicLLM {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicLLM{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
	}
}

func (l *AnthropicLLM) Name() string { return "anthropic-llm" }

func (l *AnthropicLLM) do(ctx context.Context, systemPrompt string, messages []pkgllm.Message, stream bool) (*http.Response, error) {
	var anthropicMessages []map[string]string
	for _, m := range messages {
		anthropicMessages = append(anthropicMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]interface{}{
		"model":      l.model,
		"messages":   anthropicMessages,
		"max_tokens": 1024,
		"stream":     stream,
	}
	if systemPrompt != "" {
		payload["system"] = systemPrompt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("anthropic llm error (status %d): %v", resp.StatusCode, errResp)
	}
	return resp, nil
}

func (l *AnthropicLLM) GenerateQuestion(ctx context.Context, systemPrompt string, messages []pkgllm.Message) (string, error) {
	resp, err := l.do(ctx, systemPrompt, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("no content returned from anthropic")
	}
	return result.Content[0].Text, nil
}

// GenerateQuestionStreaming parses Anthropic's SSE content-block-delta
// stream, forwarding each text delta as a token.
func (l *AnthropicLLM) GenerateQuestionStreaming(ctx context.Context, systemPrompt string, messages []pkgllm.Message) (<-chan string, <-chan error) {
	tokens := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(tokens)
		defer close(errCh)

		resp, err := l.do(ctx, systemPrompt, messages, true)
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			if event.Type == "content_block_delta" && event.Delta.Text != "" {
				select {
				case tokens <- event.Delta.Text:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		}
	}()

	return tokens, errCh
}

func (l *AnthropicLLM) EvaluateResponse(ctx context.Context, systemPrompt, exchangeText string) (pkgllm.Verdict, error) {
	text, err := l.GenerateQuestion(ctx, systemPrompt, []pkgllm.Message{{Role: "user", Content: exchangeText}})
	if err != nil {
		return pkgllm.Verdict{}, err
	}
	return parseVerdict(text)
}

func (l *AnthropicLLM) GenerateDebrief(ctx context.Context, systemPrompt string, sessionData map[string]any, maxTokens int) (string, error) {
	summary, err := json.Marshal(sessionData)
	if err != nil {
		return "", err
	}
	return l.GenerateQuestion(ctx, systemPrompt, []pkgllm.Message{{Role: "user", Content: string(summary)}})
}
