package llm

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"HibiscusMeet/pkg/errors"
)

func TestParseSentiment(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		want  string
		score float64
	}{
		{"plain json", `{"sentiment":"positive","score":0.8}`, "positive", 0.8},
		{"wrapped in prose", "Here is the result: {\"sentiment\":\"negative\",\"score\":-0.5} as requested.", "negative", -0.5},
		{"code fence", "```json\n{\"sentiment\":\"neutral\",\"score\":0}\n```", "neutral", 0},
		{"garbage falls back", "I cannot analyze this.", "neutral", 0},
		{"empty falls back", "", "neutral", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseSentiment(tc.raw)
			if got.Sentiment != tc.want {
				t.Errorf("sentiment: expected %q, got %q", tc.want, got.Sentiment)
			}
			if got.Score != tc.score {
				t.Errorf("score: expected %v, got %v", tc.score, got.Score)
			}
		})
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); err == nil {
		t.Error("expected error when api key missing")
	}
}

func TestSummarizeFailureIsUpstreamCoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = c.Summarize(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	var coded *errors.Error
	if !stderrors.As(err, &coded) || coded.Code != errors.CodeUpstream {
		t.Fatalf("expected upstream-coded error, got %v", err)
	}
}
