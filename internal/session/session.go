// Package session holds the interactive state of one comparison session and
// turns submissions into conversation entries.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/conversation"
	"github.com/valpere/transbench/internal/pipeline"
)

const (
	bannerText      = "실험 모드: LLM vs Agent 비교 인터페이스 (번역 작업 전용)"
	explanationText = "LLM 모드에서는 좌측에서 하나의 역할만 선택할 수 있습니다. Agent 모드에서는 Draft→Refinement→Evaluation→Score 순서를 자동 사용합니다."
)

// Runner executes submissions. *pipeline.Orchestrator implements it.
type Runner interface {
	RunSingle(ctx context.Context, req pipeline.Request) (*pipeline.Run, error)
	RunPipeline(ctx context.Context, req pipeline.Request) (*pipeline.Run, error)
}

// LanguageHinter names the language of an input, or returns "".
type LanguageHinter interface {
	Hint(text string) string
}

// Recorder persists finished runs. Failures are logged and never surface to
// the caller.
type Recorder interface {
	SaveRun(ctx context.Context, run *pipeline.Run) error
}

// Session is a point-in-time copy of the controller state.
type Session struct {
	Mode         internal.Mode
	Intent       internal.Intent
	SelectedRole internal.RoleID
	Conversation []internal.Message
}

type Option func(*Controller)

func WithLanguageHinter(h LanguageHinter) Option {
	return func(c *Controller) { c.hinter = h }
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the single writer of a session. Submit holds the lock for
// the whole run, so submissions are serialized.
type Controller struct {
	mu     sync.Mutex
	runner Runner
	log    *conversation.Log

	mode   internal.Mode
	intent internal.Intent
	role   internal.RoleID

	hinter   LanguageHinter
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// New returns a controller in LLM mode with the literal intent, the draft
// role selected and the welcome messages in the conversation.
func New(runner Runner, opts ...Option) *Controller {
	c := &Controller{
		runner: runner,
		mode:   internal.ModeLLM,
		intent: internal.IntentLiteral,
		role:   internal.RoleDraft,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	at := c.now()
	c.log = conversation.New(
		internal.Message{Speaker: internal.SpeakerSystem, Text: bannerText, At: at},
		internal.Message{Speaker: internal.SpeakerAssistant, Text: explanationText, At: at},
	)
	return c
}

// SetMode switches between LLM and Agent. The selected role is kept.
func (c *Controller) SetMode(m internal.Mode) error {
	m, err := internal.ParseMode(string(m))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	return nil
}

func (c *Controller) SetIntent(i internal.Intent) error {
	if _, err := catalog.LookupIntent(i); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intent = i
	return nil
}

// SelectRole stores the role used in LLM mode. It is accepted in Agent mode
// but has no effect until the session returns to LLM mode.
func (c *Controller) SelectRole(id internal.RoleID) error {
	if _, err := catalog.LookupRole(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = id
	return nil
}

func (c *Controller) Mode() internal.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		Mode:         c.mode,
		Intent:       c.intent,
		SelectedRole: c.role,
		Conversation: c.log.All(),
	}
}

func (c *Controller) Conversation() []internal.Message {
	return c.log.All()
}

// Submit runs input under the current mode, intent and role. Validation
// errors are returned with the conversation untouched. Otherwise exactly two
// messages are appended, the trimmed user input and the run's reply,
// whatever the outcome of the run.
func (c *Controller) Submit(ctx context.Context, input string) (*pipeline.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	input = strings.TrimSpace(input)
	req := pipeline.Request{
		Intent: c.intent,
		Role:   c.role,
		Input:  input,
	}
	if err := req.Validate(c.mode); err != nil {
		return nil, err
	}
	if c.hinter != nil {
		req.SourceLanguage = c.hinter.Hint(input)
	}

	submitted := c.now()
	var (
		run *pipeline.Run
		err error
	)
	if c.mode == internal.ModeAgent {
		run, err = c.runner.RunPipeline(ctx, req)
	} else {
		run, err = c.runner.RunSingle(ctx, req)
	}
	if err != nil {
		// Runners only fail on validation; stage errors arrive in run.
		return nil, err
	}

	c.log.Append(internal.Message{Speaker: internal.SpeakerUser, Text: input, At: submitted})
	reply := run.Reply()
	reply.At = c.now()
	c.log.Append(reply)

	if c.recorder != nil {
		if err := c.recorder.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			c.logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return run, nil
}
