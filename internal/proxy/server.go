// Package proxy serves the chat-completion endpoint that the proxy backend
// talks to. It holds the provider credential so clients never see it.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/completion"
)

const (
	ChatPath = "/api/chat"

	// DefaultMaxBodyBytes caps a chat request body.
	DefaultMaxBodyBytes = 1 << 20
)

type Options struct {
	// Raw adds the provider's completion object to successful responses.
	Raw bool
	// Timeout bounds each upstream call. Zero leaves it to the request
	// context and the completer's client.
	Timeout time.Duration
	// MaxBodyBytes caps the request body; zero selects DefaultMaxBodyBytes.
	MaxBodyBytes int64
	Logger       *zap.Logger
}

type Server struct {
	completer completion.Completer
	opts      Options
	logger    *zap.Logger
}

// NewServer returns the proxy handler with logging, request ids and panic
// recovery applied.
func NewServer(c completion.Completer, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{completer: c, opts: opts, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc(ChatPath, s.handleChat)
	mux.HandleFunc("/healthz", handleHealthz)

	return chainMiddlewares(mux,
		withRequestID,
		withLogging(logger),
		withRecovery(logger),
	)
}

type chatRequest struct {
	Messages    []completion.Message `json:"messages"`
	Model       string               `json:"model"`
	Temperature *float64             `json:"temperature"`

	// Simplified shape, used when Messages is empty.
	Input   string `json:"input"`
	Context string `json:"context"`
}

type chatResponse struct {
	Content string          `json:"content"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, completion.ErrorBody{Error: "Method Not Allowed"})
		return
	}

	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		failure(w, &internal.ExternalServiceError{Op: "decode request", Err: err})
		return
	}

	upstream, err := req.toCompletion()
	if err != nil {
		failure(w, err)
		return
	}

	ctx := r.Context()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	resp, err := s.completer.Complete(ctx, upstream)
	if err != nil {
		s.logger.Warn("completion failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("backend", s.completer.Name()),
			zap.Error(err))
		failure(w, err)
		return
	}

	out := chatResponse{Content: resp.Content}
	if s.opts.Raw {
		out.Raw = resp.Raw
	}
	writeJSON(w, http.StatusOK, out)
}

var errNoMessages = errors.New("messages are empty and no input or context was given")

// toCompletion applies the defaults and derives messages from input and
// context when none were sent.
func (r chatRequest) toCompletion() (completion.Request, error) {
	out := completion.Request{
		Messages:    r.Messages,
		Model:       r.Model,
		Temperature: completion.DefaultTemperature,
	}
	if out.Model == "" {
		out.Model = completion.DefaultModel
	}
	if r.Temperature != nil {
		out.Temperature = *r.Temperature
	}

	if len(out.Messages) == 0 {
		if strings.TrimSpace(r.Context) != "" {
			out.Messages = append(out.Messages, completion.Message{Role: "system", Content: r.Context})
		}
		if strings.TrimSpace(r.Input) != "" {
			out.Messages = append(out.Messages, completion.Message{Role: "user", Content: r.Input})
		}
	}
	if len(out.Messages) == 0 {
		return out, errNoMessages
	}
	return out, nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// failure writes every error as 500 {error}; a missing credential is also
// tagged with kind "configuration".
func failure(w http.ResponseWriter, err error) {
	body := completion.ErrorBody{Error: err.Error()}
	if internal.IsConfiguration(err) {
		body.Kind = completion.ErrorKindConfiguration
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
