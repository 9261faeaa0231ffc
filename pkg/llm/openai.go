package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"HibiscusMeet/pkg/errors"
)

const (
	summarySystemPrompt = "You are a helpful assistant that summarizes text concisely and accurately."

	sentimentSystemPrompt = `You are a sentiment analysis assistant. Analyze the sentiment of the given text and respond with a JSON object containing "sentiment" (positive, negative, or neutral) and "score" (a number between -1 and 1, where -1 is very negative, 0 is neutral, and 1 is very positive).`
)

// OpenAIConfig OpenAI 客户端配置
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // 留空使用官方地址
	WhisperModel string
	ChatModel    string
	Timeout      time.Duration
}

// OpenAIClient implements Transcriber and Chat on the OpenAI API.
type OpenAIClient struct {
	client       *openai.Client
	whisperModel string
	chatModel    string
	timeout      time.Duration
}

// NewOpenAIClient creates a client. Errors when no API key is configured so
// callers fail fast instead of at the first request.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = openai.Whisper1
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT3Dot5Turbo
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(clientCfg),
		whisperModel: cfg.WhisperModel,
		chatModel:    cfg.ChatModel,
		timeout:      cfg.Timeout,
	}, nil
}

// Transcribe uploads one audio file and returns transcript text and detected
// language ("unknown" when the API does not report one).
func (c *OpenAIClient) Transcribe(ctx context.Context, filePath string) (TranscriptResult, error) {
	if _, err := os.Stat(filePath); err != nil {
		return TranscriptResult{}, fmt.Errorf("audio file not found: %s", filePath)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.whisperModel,
		FilePath: filePath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return TranscriptResult{}, errors.Upstream(err, "openai transcription failed")
	}

	language := resp.Language
	if language == "" {
		language = "unknown"
	}
	return TranscriptResult{Text: resp.Text, Language: language}, nil
}

// Summarize 文本摘要
func (c *OpenAIClient) Summarize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Please summarize the following text:\n\n" + text},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		return "", errors.Upstream(err, "text summarization failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.Upstream(nil, "no summary generated")
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.Upstream(nil, "no summary generated")
	}
	return summary, nil
}

// AnalyzeSentiment 情感分析，模型输出 JSON 解析失败时回退为 neutral
func (c *OpenAIClient) AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sentimentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Analyze the sentiment of this text:\n\n" + text},
		},
		MaxTokens:   150,
		Temperature: 0.1,
	})
	if err != nil {
		return Sentiment{}, errors.Upstream(err, "sentiment analysis failed")
	}
	if len(resp.Choices) == 0 {
		return Sentiment{}, errors.Upstream(nil, "no sentiment analysis generated")
	}
	return parseSentiment(resp.Choices[0].Message.Content), nil
}

// parseSentiment is lenient: the model sometimes wraps JSON in prose or code
// fences, and an unparseable answer falls back to neutral.
func parseSentiment(raw string) Sentiment {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '{'); i >= 0 {
		if j := strings.LastIndexByte(raw, '}'); j > i {
			raw = raw[i : j+1]
		}
	}
	var s Sentiment
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Sentiment == "" {
		return Sentiment{Sentiment: "neutral", Score: 0}
	}
	return s
}
