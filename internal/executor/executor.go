// Package executor runs a single stage: one prompt, one completion call.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/completion"
)

const (
	DefaultTimeout = 60 * time.Second
	MaxTemperature = 2.0
)

// Executor normalizes the result of one completion call. It never retries
// and never caches; retry policy belongs to the caller.
type Executor struct {
	completer completion.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

// New wraps c. A non-positive timeout selects DefaultTimeout.
func New(c completion.Completer, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		completer: c,
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute sends prompt to the model and returns the assistant text, which is
// "" when the provider produced no content. Failures are either a
// *internal.ConfigurationError or a *internal.ExternalServiceError; invalid
// arguments fail locally before any call.
func (e *Executor) Execute(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", internal.ErrEmptyPrompt
	}
	if model == "" {
		model = completion.DefaultModel
	}
	if math.IsNaN(temperature) || temperature < 0 || temperature > MaxTemperature {
		return "", fmt.Errorf("%w: %v", internal.ErrTemperatureRange, temperature)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log := e.logger.With(
		zap.String("backend", e.completer.Name()),
		zap.String("model", model),
		zap.Float64("temperature", temperature),
	)
	log.Debug("completion request", zap.Int("prompt_tokens_est", EstimateTokensSimple(prompt)))

	start := time.Now()
	resp, err := e.completer.Complete(callCtx, completion.UserPrompt(prompt, model, temperature))
	latency := time.Since(start)

	if err != nil {
		err = classify(callCtx, e.completer.Name(), err)
		log.Warn("completion failed", zap.Duration("latency", latency), zap.Error(err))
		return "", err
	}
	if resp == nil {
		return "", nil
	}

	log.Debug("completion done",
		zap.Duration("latency", latency),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("content_len", len(resp.Content)))
	return resp.Content, nil
}

// classify maps any completer failure onto the two terminal error kinds.
func classify(callCtx context.Context, op string, err error) error {
	var cfgErr *internal.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}

	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)

	var extErr *internal.ExternalServiceError
	if errors.As(err, &extErr) {
		if timedOut && !extErr.Timeout {
			extErr.Timeout = true
		}
		return err
	}
	return &internal.ExternalServiceError{Op: op, Timeout: timedOut, Err: err}
}
