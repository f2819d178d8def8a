package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
)

func TestBuild_Deterministic(t *testing.T) {
	c := Context{
		Mode:        internal.ModeAgent,
		Intent:      internal.IntentReader,
		Role:        internal.RoleEval,
		Input:       "The quick brown fox",
		PriorOutput: "Refined: 빠른 갈색 여우",
	}

	first, err := Build(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := Build(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != first {
			t.Fatalf("call %d produced a different prompt", i)
		}
	}
}

func TestBuild_LLMScenario(t *testing.T) {
	draft, _ := catalog.LookupRole(internal.RoleDraft)

	got, err := Build(Context{
		Mode:   internal.ModeLLM,
		Intent: internal.IntentLiteral,
		Role:   internal.RoleDraft,
		Input:  "Hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(got, draft.Snippet) {
		t.Error("expected prompt to contain the draft snippet")
	}
	if !strings.HasSuffix(got, "Hello") {
		t.Errorf("expected prompt to end with the input, got %q", got)
	}
	if !strings.HasPrefix(got, "[모드] LLM  |  [의도] 단순 직역\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(got, "\n", 2)[0])
	}
	if strings.Contains(got, "[이전 단계 출력") {
		t.Error("LLM prompt must not carry a prior-stage block")
	}
}

func TestBuild_FixedOrder(t *testing.T) {
	got, err := Build(Context{
		Mode:        internal.ModeAgent,
		Intent:      internal.IntentHeadline,
		Role:        internal.RoleRefine,
		Input:       "Breaking news headline",
		PriorOutput: "DRAFT-OUTPUT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	header := strings.Index(got, "[모드]")
	snippet := strings.Index(got, "You are a Refinement Agent")
	prior := strings.Index(got, "DRAFT-OUTPUT")
	input := strings.Index(got, "Breaking news headline")

	if !(header == 0 && header < snippet && snippet < prior && prior < input) {
		t.Errorf("sections out of order: header=%d snippet=%d prior=%d input=%d", header, snippet, prior, input)
	}
	if !strings.Contains(got, "[단계] 2/4 Refinement Agent") {
		t.Error("expected stage marker 2/4")
	}
}

func TestBuild_PriorOutputVerbatim(t *testing.T) {
	prior := "  line one\n\n  «line two»  \n"

	got, err := Build(Context{
		Mode:        internal.ModeAgent,
		Intent:      internal.IntentLiteral,
		Role:        internal.RoleScore,
		Input:       "source",
		PriorOutput: prior,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, prior) {
		t.Error("expected prior output to be embedded verbatim")
	}
}

func TestBuild_FirstStageIgnoresPrior(t *testing.T) {
	got, err := Build(Context{
		Mode:        internal.ModeAgent,
		Intent:      internal.IntentLiteral,
		Role:        internal.RoleDraft,
		Input:       "source",
		PriorOutput: "should not appear",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "should not appear") {
		t.Error("first stage must not embed prior output")
	}
}

func TestBuild_InvalidIntent(t *testing.T) {
	_, err := Build(Context{Mode: internal.ModeLLM, Intent: "poetry", Role: internal.RoleDraft, Input: "x"})

	var intentErr *internal.InvalidIntentError
	if !errors.As(err, &intentErr) {
		t.Fatalf("expected InvalidIntentError, got %v", err)
	}
}

func TestBuild_InvalidRole(t *testing.T) {
	_, err := Build(Context{Mode: internal.ModeLLM, Intent: internal.IntentLiteral, Role: "critic", Input: "x"})

	var roleErr *internal.InvalidRoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("expected InvalidRoleError, got %v", err)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	_, err := Build(Context{Mode: internal.ModeLLM, Intent: internal.IntentLiteral, Role: internal.RoleDraft, Input: "   \n"})
	if !errors.Is(err, internal.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestBuild_NormalizesInput(t *testing.T) {
	// "é" as e + combining acute vs precomposed.
	decomposed := "cafe\u0301"
	precomposed := "caf\u00e9"

	a, err := Build(Context{Mode: internal.ModeLLM, Intent: internal.IntentLiteral, Role: internal.RoleDraft, Input: decomposed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Build(Context{Mode: internal.ModeLLM, Intent: internal.IntentLiteral, Role: internal.RoleDraft, Input: precomposed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("expected NFC-equivalent inputs to produce identical prompts")
	}
}

func TestBuild_SourceLanguageLine(t *testing.T) {
	got, err := Build(Context{
		Mode:           internal.ModeLLM,
		Intent:         internal.IntentReader,
		Role:           internal.RoleDraft,
		Input:          "Hello",
		SourceLanguage: "English",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "[원문 언어] English\n") {
		t.Error("expected source language line")
	}
	if !strings.Contains(got, "① 목표 독자를 고려한 난이도, 어조 결정\n② 지침 포함 번역 지시") {
		t.Error("expected intent steps in header")
	}
}

func TestPreview(t *testing.T) {
	llm, err := Preview(internal.ModeLLM, internal.IntentLiteral, internal.RoleScore)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm, "[역할] Score Agent") {
		t.Errorf("unexpected LLM preview: %q", llm)
	}

	agent, err := Preview(internal.ModeAgent, internal.IntentLiteral, "ignored")
	if err != nil {
		t.Fatalf("agent preview must ignore the role, got %v", err)
	}
	if !strings.Contains(agent, catalog.PipelineLabel) {
		t.Errorf("unexpected agent preview: %q", agent)
	}
}
