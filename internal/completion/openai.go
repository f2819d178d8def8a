package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/valpere/transbench/internal"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
)

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint. The
// API key is looked up on every call, so a key exported after start-up is
// picked up and a missing key never leads to a request.
type OpenAIClient struct {
	baseURL string
	keyEnv  string
	lookup  func(string) string
	client  *http.Client
}

func NewOpenAIClient(baseURL, keyEnv string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}
	return &OpenAIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		keyEnv:  keyEnv,
		lookup:  os.Getenv,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

// KeyEnv names the environment variable holding the API key.
func (c *OpenAIClient) KeyEnv() string {
	return c.keyEnv
}

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	apiKey := strings.TrimSpace(c.lookup(c.keyEnv))
	if apiKey == "" {
		return nil, &internal.ConfigurationError{Setting: c.keyEnv, Err: fmt.Errorf("provider API key is not set")}
	}

	if req.Model == "" {
		req.Model = DefaultModel
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(c.Name(), resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}

	var completion chatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, decodeError(c.Name(), err)
	}

	out := &Response{
		Model: completion.Model,
		Usage: completion.Usage,
		Raw:   json.RawMessage(raw),
	}
	if len(completion.Choices) > 0 && completion.Choices[0].Message.Content != nil {
		out.Content = *completion.Choices[0].Message.Content
	}
	return out, nil
}
