package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openAIProvider calls the OpenAI chat-completions API, requesting
// json_object response formatting so the gateway can parse StudyContent
// directly without custom decoding.
type openAIProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func newOpenAIProvider(apiKey string) *openAIProvider {
	return &openAIProvider{apiKey: apiKey, model: "gpt-4o-mini", client: &http.Client{}}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	reqBody := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature":     opts.Temperature,
		"top_p":           opts.TopP,
		"response_format": map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	client := p.client
	if opts.Timeout > 0 {
		c := *client
		c.Timeout = opts.Timeout
		client = &c
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: p.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode >= 500 {
		return "", &TransientError{Provider: p.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, respBody)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return "", &RefusalError{Provider: p.Name(), Reason: "content_filter"}
	}
	return parsed.Choices[0].Message.Content, nil
}

// anthropicProvider calls the Anthropic messages API. Anthropic has no
// response_format switch, so JSON compliance relies on the prompt alone.
type anthropicProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func newAnthropicProvider(apiKey string) *anthropicProvider {
	return &anthropicProvider{apiKey: apiKey, model: "claude-3-5-sonnet-20241022", client: &http.Client{}}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	reqBody := map[string]any{
		"model":       p.model,
		"max_tokens":  4096,
		"temperature": opts.Temperature,
		"top_p":       opts.TopP,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	client := p.client
	if opts.Timeout > 0 {
		c := *client
		c.Timeout = opts.Timeout
		client = &c
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := client.Do(req)
	if err != nil {
		return "", &TransientError{Provider: p.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode >= 500 {
		return "", &TransientError{Provider: p.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, respBody)
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}
	if parsed.StopReason == "refusal" {
		return "", &RefusalError{Provider: p.Name(), Reason: "refusal"}
	}
	return parsed.Content[0].Text, nil
}
