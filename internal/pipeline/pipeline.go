// Package pipeline sequences stage executions. In LLM mode it performs one
// call with the selected role; in Agent mode it walks the role catalog in
// order, feeding each stage's output into the next stage's prompt and
// stopping at the first failure.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/completion"
	"github.com/valpere/transbench/internal/executor"
	"github.com/valpere/transbench/internal/postprocess"
	"github.com/valpere/transbench/internal/prompt"
)

// StageExecutor performs one completion call for a prompt.
type StageExecutor interface {
	Execute(ctx context.Context, prompt, model string, temperature float64) (string, error)
}

// Observer is notified around every stage attempt. Calls happen on the
// goroutine running the pipeline.
type Observer interface {
	StageStarted(run *Run, role internal.Role, attempt int)
	StageFinished(run *Run, result internal.StageResult)
}

type RetryPolicy struct {
	// MaxAttempts counts the first call; 1 disables retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// exponential doubles from BaseDelay up to MaxDelay without jitter and
// never gives up on its own.
func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// backOff allows MaxAttempts-1 retries and stops when ctx is done.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(retries)), ctx)
}

type Config struct {
	Model string
	// Temperature nil selects completion.DefaultTemperature; zero is a valid
	// setting.
	Temperature *float64
	Retry       RetryPolicy
}

// Request describes one submission. Role is read only by RunSingle.
type Request struct {
	Intent         internal.Intent
	Role           internal.RoleID
	Input          string
	SourceLanguage string
}

// Validate checks the request locally for the given mode.
func (r Request) Validate(mode internal.Mode) error {
	if _, err := catalog.LookupIntent(r.Intent); err != nil {
		return err
	}
	if mode == internal.ModeLLM {
		if _, err := catalog.LookupRole(r.Role); err != nil {
			return err
		}
	}
	if strings.TrimSpace(r.Input) == "" {
		return internal.ErrEmptyInput
	}
	return nil
}

type Orchestrator struct {
	executor  StageExecutor
	config    Config
	logger    *zap.Logger
	observers []Observer

	temperature float64
	// newTimer replaces the backoff timer in tests; nil uses a real timer.
	newTimer func() backoff.Timer
}

func New(exec StageExecutor, config Config, logger *zap.Logger, observers ...Observer) *Orchestrator {
	if config.Model == "" {
		config.Model = completion.DefaultModel
	}
	temperature := completion.DefaultTemperature
	if config.Temperature != nil {
		temperature = *config.Temperature
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = 1
	}
	if config.Retry.BaseDelay <= 0 {
		config.Retry.BaseDelay = 500 * time.Millisecond
	}
	if config.Retry.MaxDelay <= 0 {
		config.Retry.MaxDelay = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		executor:    exec,
		config:      config,
		logger:      logger,
		observers:   observers,
		temperature: temperature,
	}
}

// AddObserver registers o for subsequent runs.
func (o *Orchestrator) AddObserver(obs Observer) {
	o.observers = append(o.observers, obs)
}

// RunSingle executes the selected role once. The returned error is non-nil
// only when req fails validation, in which case nothing was dispatched.
func (o *Orchestrator) RunSingle(ctx context.Context, req Request) (*Run, error) {
	if err := req.Validate(internal.ModeLLM); err != nil {
		return nil, err
	}
	role, _ := catalog.LookupRole(req.Role)
	return o.run(ctx, internal.ModeLLM, req, []internal.Role{role}), nil
}

// RunPipeline executes Draft, Refinement, Evaluation and Score in order.
// The context is checked before each stage; cancelling it stops the run
// between stages, never in the middle of a call.
func (o *Orchestrator) RunPipeline(ctx context.Context, req Request) (*Run, error) {
	if err := req.Validate(internal.ModeAgent); err != nil {
		return nil, err
	}
	return o.run(ctx, internal.ModeAgent, req, catalog.Roles()), nil
}

func (o *Orchestrator) run(ctx context.Context, mode internal.Mode, req Request, roles []internal.Role) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Intent:    req.Intent,
		Input:     req.Input,
		Stages:    make([]internal.StageResult, 0, len(roles)),
		State:     StateRunning,
		StartedAt: time.Now(),
	}
	log := o.logger.With(zap.String("run_id", run.ID), zap.String("mode", string(mode)))
	log.Info("run started", zap.String("intent", string(req.Intent)), zap.Int("stages", len(roles)))

	defer func() {
		run.FinishedAt = time.Now()
		log.Info("run finished",
			zap.Stringer("state", run.State),
			zap.Int("completed_stages", len(run.Stages)),
			zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	}()

	prior := ""
	for _, role := range roles {
		if err := ctx.Err(); err != nil {
			run.State = StateCancelled
			run.HaltedAt = role.ID
			run.Err = err
			return run
		}

		p, err := prompt.Build(prompt.Context{
			Mode:           mode,
			Intent:         req.Intent,
			Role:           role.ID,
			Input:          req.Input,
			PriorOutput:    prior,
			SourceLanguage: req.SourceLanguage,
		})
		if err != nil {
			run.State = StateFailed
			run.HaltedAt = role.ID
			run.Err = err
			return run
		}

		result, interrupted := o.executeStage(ctx, run, role, p, log)
		run.Stages = append(run.Stages, result)
		for _, obs := range o.observers {
			obs.StageFinished(run, result)
		}

		if !result.Succeeded {
			run.HaltedAt = role.ID
			run.Err = result.Err
			run.State = StateFailed
			if interrupted {
				run.State = StateCancelled
			}
			return run
		}
		prior = result.Output
	}

	run.State = StateSucceeded
	return run
}

// executeStage calls the executor, retrying ExternalServiceError with
// exponential backoff up to the policy's attempt limit. The call itself runs
// on a context detached from ctx's cancellation so that an in-flight request
// always completes (the executor bounds it with its own timeout).
// interrupted reports that ctx was cancelled while waiting to retry.
func (o *Orchestrator) executeStage(ctx context.Context, run *Run, role internal.Role, p string, log *zap.Logger) (result internal.StageResult, interrupted bool) {
	result = internal.StageResult{
		RoleID:       role.ID,
		PromptTokens: executor.EstimateTokensSimple(p),
	}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	callCtx := context.WithoutCancel(ctx)
	attempt := 0
	operation := func() error {
		attempt++
		result.Attempts = attempt
		for _, obs := range o.observers {
			obs.StageStarted(run, role, attempt)
		}

		out, err := o.executor.Execute(callCtx, p, o.config.Model, o.temperature)
		if err == nil {
			result.Output = postprocess.Clean(out)
			result.Succeeded = true
			result.Err = nil
			log.Debug("stage succeeded", zap.String("stage", string(role.ID)), zap.Int("attempt", attempt))
			return nil
		}

		result.Err = err
		log.Warn("stage failed", zap.String("stage", string(role.ID)), zap.Int("attempt", attempt), zap.Error(err))
		if attempt >= o.config.Retry.MaxAttempts || !internal.IsExternal(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Debug("retrying stage", zap.String("stage", string(role.ID)), zap.Duration("backoff", next))
	}

	var timer backoff.Timer
	if o.newTimer != nil {
		timer = o.newTimer()
	}
	err := backoff.RetryNotifyWithTimer(operation, o.config.Retry.backOff(ctx), notify, timer)
	if err == nil {
		return result, false
	}
	// Retry hands back ctx.Err() only when it stopped waiting for a retry.
	cerr := ctx.Err()
	return result, cerr != nil && err == cerr
}
