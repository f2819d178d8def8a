package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/pipeline"
)

type mockExecutor struct {
	mu          sync.Mutex
	prompts     []string
	executeFunc func(n int, prompt string) (string, error)
}

func (m *mockExecutor) Execute(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	n := len(m.prompts)
	m.mu.Unlock()

	if m.executeFunc != nil {
		return m.executeFunc(n, prompt)
	}
	return fmt.Sprintf("stage-%d", n), nil
}

func (m *mockExecutor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type mockRecorder struct {
	saved atomic.Int32
	err   error
}

func (m *mockRecorder) SaveRun(ctx context.Context, run *pipeline.Run) error {
	m.saved.Add(1)
	return m.err
}

type fixedHinter string

func (h fixedHinter) Hint(string) string { return string(h) }

var fixedTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newController(t *testing.T, exec pipeline.StageExecutor, opts ...Option) *Controller {
	t.Helper()
	orch := pipeline.New(exec, pipeline.Config{}, zaptest.NewLogger(t))
	opts = append([]Option{WithClock(func() time.Time { return fixedTime }), WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(orch, opts...)
}

func TestNew_Defaults(t *testing.T) {
	c := newController(t, &mockExecutor{})

	s := c.Snapshot()
	assert.Equal(t, internal.ModeLLM, s.Mode)
	assert.Equal(t, internal.IntentLiteral, s.Intent)
	assert.Equal(t, internal.RoleDraft, s.SelectedRole)

	want := []internal.Message{
		{Speaker: internal.SpeakerSystem, Text: bannerText, At: fixedTime},
		{Speaker: internal.SpeakerAssistant, Text: explanationText, At: fixedTime},
	}
	if diff := cmp.Diff(want, s.Conversation); diff != "" {
		t.Errorf("seed conversation mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_LLMDraftLiteral(t *testing.T) {
	exec := &mockExecutor{executeFunc: func(n int, prompt string) (string, error) {
		return "안녕하세요", nil
	}}
	c := newController(t, exec)
	before := len(c.Conversation())

	run, err := c.Submit(context.Background(), "Hello")
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, 1, exec.calls())
	draft, _ := catalog.LookupRole(internal.RoleDraft)
	assert.Contains(t, exec.prompts[0], draft.Snippet)
	assert.Contains(t, exec.prompts[0], "Hello")

	msgs := c.Conversation()
	require.Len(t, msgs, before+2)
	want := []internal.Message{
		{Speaker: internal.SpeakerUser, Text: "Hello", At: fixedTime},
		{Speaker: internal.SpeakerAssistant, Text: "안녕하세요", StageID: internal.RoleDraft, At: fixedTime},
	}
	if diff := cmp.Diff(want, msgs[before:]); diff != "" {
		t.Errorf("appended messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_AgentHeadline(t *testing.T) {
	exec := &mockExecutor{}
	c := newController(t, exec)
	require.NoError(t, c.SetMode(internal.ModeAgent))
	require.NoError(t, c.SetIntent(internal.IntentHeadline))

	run, err := c.Submit(context.Background(), "Markets rally as inflation cools")
	require.NoError(t, err)

	assert.Equal(t, 4, exec.calls())
	assert.Equal(t, pipeline.StateSucceeded, run.State)
	for i := 1; i < 4; i++ {
		assert.Contains(t, exec.prompts[i], fmt.Sprintf("stage-%d", i))
	}

	msgs := c.Conversation()
	last := msgs[len(msgs)-1]
	assert.Equal(t, "stage-4", last.Text)
	assert.Equal(t, internal.RoleScore, last.StageID)
	assert.False(t, last.Failed)
}

func TestSubmit_AgentFailureAtEvaluation(t *testing.T) {
	exec := &mockExecutor{executeFunc: func(n int, prompt string) (string, error) {
		if n == 3 {
			return "", &internal.ExternalServiceError{Op: "proxy", StatusCode: 502, Err: errors.New("bad gateway")}
		}
		return fmt.Sprintf("stage-%d", n), nil
	}}
	c := newController(t, exec)
	require.NoError(t, c.SetMode(internal.ModeAgent))
	before := len(c.Conversation())

	run, err := c.Submit(context.Background(), "Markets rally")
	require.NoError(t, err)

	assert.Equal(t, 3, exec.calls())
	assert.Equal(t, pipeline.StateFailed, run.State)

	msgs := c.Conversation()
	require.Len(t, msgs, before+2)
	reply := msgs[len(msgs)-1]
	assert.True(t, reply.Failed)
	assert.Equal(t, internal.RoleEval, reply.StageID)
	assert.Contains(t, reply.Text, "Evaluation Agent")
	assert.NotContains(t, reply.Text, "stage-2")
}

func TestSubmit_ConfigurationErrorStillAppendsReply(t *testing.T) {
	exec := &mockExecutor{executeFunc: func(n int, prompt string) (string, error) {
		return "", &internal.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}}
	c := newController(t, exec)
	before := len(c.Conversation())

	run, err := c.Submit(context.Background(), "Hello")
	require.NoError(t, err)
	assert.True(t, internal.IsConfiguration(run.Err))

	msgs := c.Conversation()
	require.Len(t, msgs, before+2)
	assert.True(t, msgs[len(msgs)-1].Failed)
}

func TestSubmit_EmptyInput(t *testing.T) {
	exec := &mockExecutor{}
	c := newController(t, exec)
	before := c.Conversation()

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), input)
		assert.ErrorIs(t, err, internal.ErrEmptyInput)
	}

	assert.Equal(t, 0, exec.calls())
	if diff := cmp.Diff(before, c.Conversation()); diff != "" {
		t.Errorf("conversation changed on invalid input:\n%s", diff)
	}
}

func TestSubmit_CancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := &mockExecutor{executeFunc: func(n int, prompt string) (string, error) {
		cancel()
		return "partial", nil
	}}
	c := newController(t, exec)
	require.NoError(t, c.SetMode(internal.ModeAgent))
	before := len(c.Conversation())

	run, err := c.Submit(ctx, "Hello")
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateCancelled, run.State)
	assert.Equal(t, 1, exec.calls())
	msgs := c.Conversation()
	require.Len(t, msgs, before+2)
	assert.True(t, msgs[len(msgs)-1].Failed)
	assert.Contains(t, msgs[len(msgs)-1].Text, "cancelled")
}

func TestModeSwitch_KeepsRole(t *testing.T) {
	c := newController(t, &mockExecutor{})

	require.NoError(t, c.SelectRole(internal.RoleEval))
	require.NoError(t, c.SetMode(internal.ModeAgent))
	assert.Equal(t, internal.RoleEval, c.Snapshot().SelectedRole)

	require.NoError(t, c.SelectRole(internal.RoleScore))
	require.NoError(t, c.SetMode(internal.ModeLLM))
	assert.Equal(t, internal.RoleScore, c.Snapshot().SelectedRole)
	assert.Equal(t, internal.ModeLLM, c.Mode())
}

func TestSelection_InvalidLeavesState(t *testing.T) {
	c := newController(t, &mockExecutor{})
	before := c.Snapshot()

	var roleErr *internal.InvalidRoleError
	assert.ErrorAs(t, c.SelectRole("critic"), &roleErr)

	var intentErr *internal.InvalidIntentError
	assert.ErrorAs(t, c.SetIntent("poetry"), &intentErr)

	assert.Error(t, c.SetMode("batch"))

	if diff := cmp.Diff(before, c.Snapshot()); diff != "" {
		t.Errorf("state changed after invalid selection:\n%s", diff)
	}
}

func TestSetMode_CaseInsensitive(t *testing.T) {
	c := newController(t, &mockExecutor{})
	require.NoError(t, c.SetMode("agent"))
	assert.Equal(t, internal.ModeAgent, c.Mode())
}

func TestSubmit_LanguageHint(t *testing.T) {
	exec := &mockExecutor{}
	c := newController(t, exec, WithLanguageHinter(fixedHinter("English (en)")))

	_, err := c.Submit(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Contains(t, exec.prompts[0], "English (en)")
}

func TestSubmit_Recorder(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	c := newController(t, &mockExecutor{}, WithRecorder(rec))

	_, err := c.Submit(context.Background(), "Hello")
	require.NoError(t, err, "recorder failures must not surface")
	assert.Equal(t, int32(1), rec.saved.Load())

	_, err = c.Submit(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, int32(1), rec.saved.Load())
}

func TestSubmit_ConcurrentSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	exec := &mockExecutor{executeFunc: func(n int, prompt string) (string, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}
	c := newController(t, exec)
	require.NoError(t, c.SetMode(internal.ModeAgent))
	before := len(c.Conversation())

	const submits = 5
	var wg sync.WaitGroup
	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Submit(context.Background(), fmt.Sprintf("input %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load(), "stage calls overlapped")
	assert.Equal(t, submits*4, exec.calls())

	msgs := c.Conversation()[before:]
	require.Len(t, msgs, submits*2)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, internal.SpeakerUser, msgs[i].Speaker)
		assert.True(t, strings.HasPrefix(msgs[i].Text, "input "))
		assert.Equal(t, internal.SpeakerAssistant, msgs[i+1].Speaker)
	}
}

type runnerFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Run, error)

func (f runnerFunc) RunSingle(ctx context.Context, req pipeline.Request) (*pipeline.Run, error) {
	return f(ctx, req)
}

func (f runnerFunc) RunPipeline(ctx context.Context, req pipeline.Request) (*pipeline.Run, error) {
	return f(ctx, req)
}

func TestSubmit_TrimsUserInput(t *testing.T) {
	exec := &mockExecutor{}
	c := newController(t, exec)
	before := len(c.Conversation())

	_, err := c.Submit(context.Background(), "  Hello\n")
	require.NoError(t, err)

	msgs := c.Conversation()
	require.Len(t, msgs, before+2)
	assert.Equal(t, "Hello", msgs[before].Text)
	assert.Contains(t, exec.prompts[0], "Hello")
}

func TestSubmit_RunnerErrorAppendsNothing(t *testing.T) {
	invalid := &internal.InvalidIntentError{Value: "poem"}
	var calls atomic.Int32
	c := New(runnerFunc(func(ctx context.Context, req pipeline.Request) (*pipeline.Run, error) {
		calls.Add(1)
		return nil, invalid
	}), WithClock(func() time.Time { return fixedTime }))
	before := c.Conversation()

	run, err := c.Submit(context.Background(), "Hello")
	assert.Nil(t, run)
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, int32(1), calls.Load())
	if diff := cmp.Diff(before, c.Conversation()); diff != "" {
		t.Errorf("conversation changed on runner error:\n%s", diff)
	}
}
