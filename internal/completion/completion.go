// Package completion talks to chat-completion backends: the transbench proxy,
// an OpenAI-compatible provider, or a local Ollama server.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/valpere/transbench/internal"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
)

// maxErrorBody caps how much of a failed response body ends up in errors.
const maxErrorBody = 4 << 10

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response carries the extracted assistant text. Content is "" when the
// provider returned no choices or no content.
type Response struct {
	Content string          `json:"content"`
	Model   string          `json:"model,omitempty"`
	Usage   Usage           `json:"usage"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Completer performs exactly one completion call per Complete.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// UserPrompt wraps a single prompt as a one-message request.
func UserPrompt(prompt, model string, temperature float64) Request {
	return Request{
		Messages:    []Message{{Role: "user", Content: prompt}},
		Model:       model,
		Temperature: temperature,
	}
}

// transportError classifies a failed http.Client.Do call.
func transportError(op string, err error) error {
	return &internal.ExternalServiceError{
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded) || isTimeout(err),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// statusError reads a bounded slice of a non-2xx body into an error.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &internal.ExternalServiceError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        errors.New(msg),
	}
}

func decodeError(op string, err error) error {
	return &internal.ExternalServiceError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
}
