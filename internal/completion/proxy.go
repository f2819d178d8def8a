package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valpere/transbench/internal"
)

const DefaultProxyURL = "http://localhost:8787/api/chat"

// ErrorKindConfiguration tags proxy error bodies caused by a missing
// provider credential.
const ErrorKindConfiguration = "configuration"

// ErrorBody is the proxy's failure payload.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ProxyClient calls the transbench chat-completion proxy.
type ProxyClient struct {
	url    string
	client *http.Client
}

func NewProxyClient(url string) *ProxyClient {
	if url == "" {
		url = DefaultProxyURL
	}
	return &ProxyClient{
		url:    url,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *ProxyClient) Name() string {
	return "proxy"
}

func (c *ProxyClient) Complete(ctx context.Context, req Request) (*Response, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}

	if resp.StatusCode != http.StatusOK {
		var body ErrorBody
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			if body.Kind == ErrorKindConfiguration {
				return nil, &internal.ConfigurationError{Setting: "proxy provider credential", Err: errors.New(body.Error)}
			}
			return nil, &internal.ExternalServiceError{Op: c.Name(), StatusCode: resp.StatusCode, Err: errors.New(body.Error)}
		}
		return nil, &internal.ExternalServiceError{Op: c.Name(), StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, decodeError(c.Name(), err)
	}
	return &out, nil
}
