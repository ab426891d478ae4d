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

// OpenAILLM adapts the chat completions API to pkg/llm.LLM.
type OpenAILLM struct {
	apiKey string
	url    string
	model  string
}

func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		apiKey: apiKey,
		url:    "https://api.openai.com/v1/chat/completions",
		model:  model,
	}
}

func (l *OpenAILLM) Name() string { return "openai-llm" }

func toChatMessages(systemPrompt string, messages []pkgllm.Message) []map[string]string {
	out := make([]map[string]string, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, map[string]string{"role": "system", "content": systemPrompt})
	}
	for _, m := range messages {
		out = append(out, map[string]string{"role": m.Role, "content": m.Content})
	}
	return out
}

func (l *OpenAILLM) do(ctx context.Context, systemPrompt string, messages []pkgllm.Message, stream bool) (*http.Response, error) {
	payload := map[string]interface{}{
		"model":    l.model,
		"messages": toChatMessages(systemPrompt, messages),
		"stream":   stream,
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
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("openai llm error (status %d): %v", resp.StatusCode, errResp)
	}
	return resp, nil
}

func (l *OpenAILLM) GenerateQuestion(ctx context.Context, systemPrompt string, messages []pkgllm.Message) (string, error) {
	resp, err := l.do(ctx, systemPrompt, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from openai")
	}
	return result.Choices[0].Message.Content, nil
}

func (l *OpenAILLM) GenerateQuestionStreaming(ctx context.Context, systemPrompt string, messages []pkgllm.Message) (<-chan string, <-chan error) {
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
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				return
			}
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case tokens <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
		}
	}()

	return tokens, errCh
}

func (l *OpenAILLM) EvaluateResponse(ctx context.Context, systemPrompt, exchangeText string) (pkgllm.Verdict, error) {
	text, err := l.GenerateQuestion(ctx, systemPrompt, []pkgllm.Message{{Role: "user", Content: exchangeText}})
	if err != nil {
		return pkgllm.Verdict{}, err
	}
	return parseVerdict(text)
}

func (l *OpenAILLM) GenerateDebrief(ctx context.Context, systemPrompt string, sessionData map[string]any, maxTokens int) (string, error) {
	summary, err := json.Marshal(sessionData)
	if err != nil {
		return "", err
	}
	return l.GenerateQuestion(ctx, systemPrompt, []pkgllm.Message{{Role: "user", Content: string(summary)}})
}
