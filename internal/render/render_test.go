package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/pipeline"
)

func TestRenderer_MessagePlain(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Plain: true})

	r.Message(internal.Message{Speaker: internal.SpeakerUser, Text: "Hello"})
	r.Message(internal.Message{Speaker: internal.SpeakerAssistant, Text: "안녕하세요\n두 번째 줄", StageID: internal.RoleDraft})

	want := "user\n  Hello\n\nassistant · Draft Agent\n  안녕하세요\n  두 번째 줄\n\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderer_FailedMessage(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Plain: true})

	r.Message(internal.Message{
		Speaker: internal.SpeakerAssistant,
		Text:    "(Agent) stage 3/4 Evaluation Agent (eval) failed: boom",
		StageID: internal.RoleEval,
		Failed:  true,
		At:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "✗ assistant · Evaluation Agent 09:30:00\n"))
	assert.Contains(t, out, "failed: boom")
}

func TestRenderer_EmptyAssistantMessage(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Plain: true})

	r.Message(internal.Message{Speaker: internal.SpeakerAssistant, Text: "  "})
	assert.Contains(t, buf.String(), "(empty)")
}

func TestRenderer_Markdown(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Style: "notty", Width: 60})

	r.Message(internal.Message{Speaker: internal.SpeakerAssistant, Text: "**증시 급등**"})

	out := buf.String()
	assert.Contains(t, out, "증시 급등")
}

func TestRenderer_StatusAndError(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Plain: true})

	r.Status(internal.ModeLLM, internal.IntentLiteral, internal.RoleDraft)
	r.Status(internal.ModeAgent, internal.IntentHeadline, internal.RoleDraft)
	r.Error(errors.New("input is empty"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"mode: LLM • intent: 단순 직역 • role: draft",
		"mode: Agent • intent: 기사 헤드라인 번역 • pipeline: " + catalog.PipelineLabel,
		"error: input is empty",
	}, lines)
}

func TestStageObserver(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, Options{Plain: true})
	obs := &StageObserver{R: r, Outputs: true}
	run := &pipeline.Run{Mode: internal.ModeAgent}

	draft, _ := catalog.LookupRole(internal.RoleDraft)
	obs.StageStarted(run, draft, 1)
	obs.StageFinished(run, internal.StageResult{RoleID: internal.RoleDraft, Output: "first draft", Succeeded: true, PromptTokens: 42, Latency: 1500 * time.Millisecond})

	score, _ := catalog.LookupRole(internal.RoleScore)
	obs.StageStarted(run, score, 2)
	obs.StageFinished(run, internal.StageResult{RoleID: internal.RoleScore, Output: "final", Succeeded: true})

	out := buf.String()
	assert.Contains(t, out, "→ [1/4] Draft Agent\n")
	assert.Contains(t, out, "✓ [1/4] Draft Agent done in 1.5s, ~42 prompt tokens\n")
	assert.Contains(t, out, "  first draft\n")
	assert.Contains(t, out, "→ [4/4] Score Agent (attempt 2)\n")
	assert.NotContains(t, out, "  final\n", "the final stage is printed as the reply")
}

func TestStageObserver_Failure(t *testing.T) {
	var buf bytes.Buffer
	obs := &StageObserver{R: New(&buf, Options{Plain: true})}

	obs.StageFinished(&pipeline.Run{Mode: internal.ModeLLM}, internal.StageResult{RoleID: internal.RoleRefine, Latency: 20 * time.Millisecond})

	assert.Equal(t, "✗ Refinement Agent failed after 20ms\n", buf.String())
}
