package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/deepseek-chat/internal/models"
	"github.com/MegaGrindStone/deepseek-chat/internal/stream"
	goopenai "github.com/sashabaranov/go-openai"
)

// Completions is a client for an OpenAI compatible chat completion endpoint, typically a model served on
// the local machine.
type Completions struct {
	baseURL string
	model   string

	client *http.Client

	logger *slog.Logger
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	// DefaultBaseURL is the address of the local completion server.
	DefaultBaseURL = "http://localhost:5000"
	// DefaultModel is the model name sent with every request.
	DefaultModel = "deepseek-chat"

	completionsPath = "/v1/chat/completions"
)

// ErrNoChoices is returned when a buffered response carries no choices.
var ErrNoChoices = errors.New("no choices found")

// StatusError is returned when the endpoint answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// NewCompletions creates a client for the endpoint at baseURL. Empty arguments fall back to DefaultBaseURL
// and DefaultModel, and a nil client to http.DefaultClient. No timeout is applied to requests; their
// lifetime is bound to the context passed to each call.
func NewCompletions(baseURL, model string, client *http.Client, logger *slog.Logger) Completions {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Completions{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger.With(slog.String("module", "completions")),
	}
}

// Model returns the model name sent with requests.
func (c Completions) Model() string {
	return c.model
}

// Stream sends messages with streaming enabled. It returns as soon as the response headers are received;
// the returned sequence then yields the text deltas of the reply while the body is read. The body is
// closed when the sequence finishes or the caller stops iterating.
func (c Completions) Stream(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error) {
	resp, err := c.doRequest(ctx, messages, true)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		defer resp.Body.Close()

		for delta, err := range stream.Deltas(resp.Body, c.logger) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", err)
				return
			}
			if !yield(delta, nil) {
				return
			}
		}
	}, nil
}

// Complete sends messages with streaming disabled and returns the content of the first choice. The
// onHeaders callback, if not nil, is invoked once the response headers are received and before the body
// is decoded.
func (c Completions) Complete(ctx context.Context, messages []models.Message, onHeaders func()) (string, error) {
	resp, err := c.doRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if onHeaders != nil {
		onHeaders()
	}

	var res goopenai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	if len(res.Choices) == 0 {
		return "", ErrNoChoices
	}

	return res.Choices[0].Message.Content, nil
}

func (c Completions) doRequest(ctx context.Context, messages []models.Message, stream bool) (*http.Response, error) {
	msgs := make([]chatMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = chatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	jsonBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	c.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
