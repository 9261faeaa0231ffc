package llm

import "context"

// TranscriptResult is the text produced from one audio file.
type TranscriptResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Sentiment is the parsed result of a sentiment analysis request.
type Sentiment struct {
	Sentiment string  `json:"sentiment"` // positive / negative / neutral
	Score     float64 `json:"score"`     // -1..1
}

// Transcriber converts an audio file to text via a speech-to-text API.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (TranscriptResult, error)
}

// Chat answers free-form text requests.
type Chat interface {
	// Summarize returns a concise summary of text
	Summarize(ctx context.Context, text string) (string, error)

	// AnalyzeSentiment classifies text and scores it in [-1, 1]
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)
}
