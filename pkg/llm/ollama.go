package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"HibiscusMeet/pkg/errors"
)

// OllamaChat 走本地 Ollama 的 Chat 实现，离线环境替代 OpenAI
//
// 只覆盖文本接口，语音转写仍需 OpenAI 兼容后端。
type OllamaChat struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaChat(baseURL, model string, timeout time.Duration) *OllamaChat {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaChat{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

func (o *OllamaChat) chat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", errors.Upstream(err, "ollama request failed")
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Upstream(err, "malformed ollama response")
	}
	if out.Error != "" {
		return "", errors.Upstream(nil, "ollama: "+out.Error)
	}
	return out.Message.Content, nil
}

// Summarize implements Chat.
func (o *OllamaChat) Summarize(ctx context.Context, text string) (string, error) {
	return o.chat(ctx, summarySystemPrompt, text)
}

// AnalyzeSentiment implements Chat.
func (o *OllamaChat) AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error) {
	raw, err := o.chat(ctx, sentimentSystemPrompt, text)
	if err != nil {
		return Sentiment{}, err
	}
	return parseSentiment(raw), nil
}
