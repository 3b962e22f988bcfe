package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice-agent/internal/domain"
)

// Client streams chat completions from the Groq API (OpenAI-compatible).
// Failures carry a *domain.DialogueError reason code so the orchestrator
// can react without parsing HTTP details. Streams are never retried here:
// replaying a partially spoken reply would duplicate speech, so retry
// policy stays with the caller.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

func NewClient(apiKey, model string, temperature float64, maxTokens int) *Client {
	return NewClientWithURL(apiKey, model, temperature, maxTokens, "https://api.groq.com/openai/v1")
}

func NewClientWithURL(apiKey, model string, temperature float64, maxTokens int, baseURL string) *Client {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &Client{
		apiKey: apiKey,
		// Per-turn deadlines come from ctx; the transport timeout is a
		// backstop for a stalled connection.
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream opens a streaming completion and invokes onChunk for every text
// fragment in arrival order, returning once the server signals the end of
// the stream.
func (c *Client) Stream(ctx context.Context, turns []domain.Turn, onChunk func(string)) error {
	reqBody := request{
		Model:       c.model,
		Messages:    toMessages(turns),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(respBody))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &domain.DialogueError{Reason: domain.ReasonAuth, Err: apiErr}
		case http.StatusTooManyRequests:
			return &domain.DialogueError{Reason: domain.ReasonRateLimit, Err: apiErr}
		default:
			return &domain.DialogueError{Reason: domain.ReasonNetwork, Err: apiErr}
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return &domain.DialogueError{
				Reason: domain.ReasonNetwork,
				Err:    fmt.Errorf("decoding stream chunk: %w", err),
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			onChunk(content)
		}
		if chunk.Choices[0].FinishReason != "" {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return c.classify(ctx, err)
	}
	return nil
}

// classify maps transport failures to reason codes, preserving plain
// cancellation so barge-in is distinguishable from a broken connection.
func (c *Client) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return context.Canceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return &domain.DialogueError{Reason: domain.ReasonTimeout, Err: err}
	default:
		return &domain.DialogueError{Reason: domain.ReasonNetwork, Err: err}
	}
}

func toMessages(turns []domain.Turn) []message {
	msgs := make([]message, len(turns))
	for i, t := range turns {
		msgs[i] = message{Role: string(t.Role), Content: t.Text}
	}
	return msgs
}
