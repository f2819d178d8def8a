package internal

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects between a single role call and the four-stage agent pipeline.
type Mode string

const (
	ModeLLM   Mode = "LLM"
	ModeAgent Mode = "Agent"
)

// ParseMode accepts "llm" or "agent" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "llm":
		return ModeLLM, nil
	case "agent":
		return ModeAgent, nil
	}
	return "", fmt.Errorf("unknown mode %q (want llm or agent)", s)
}

type Speaker string

const (
	SpeakerSystem    Speaker = "system"
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

type RoleID string

const (
	RoleDraft  RoleID = "draft"
	RoleRefine RoleID = "refine"
	RoleEval   RoleID = "eval"
	RoleScore  RoleID = "score"
)

// Role is one of the four fixed prompt personas.
type Role struct {
	ID          RoleID `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Snippet     string `json:"snippet" yaml:"snippet"`
}

// Intent is the translation task type. It changes prompt wording only.
type Intent string

const (
	IntentLiteral  Intent = "literal"
	IntentReader   Intent = "reader"
	IntentHeadline Intent = "headline"
)

// Message is one conversation entry. Failed marks the assistant-visible error
// entry produced for a failed or cancelled run.
type Message struct {
	Speaker Speaker   `json:"speaker" yaml:"speaker"`
	Text    string    `json:"text" yaml:"text"`
	StageID RoleID    `json:"stage_id,omitempty" yaml:"stage_id,omitempty"`
	Failed  bool      `json:"failed,omitempty" yaml:"failed,omitempty"`
	At      time.Time `json:"at" yaml:"at"`
}

// StageResult is the outcome of one stage's completion call.
type StageResult struct {
	RoleID       RoleID        `json:"role_id"`
	Output       string        `json:"output"`
	Succeeded    bool          `json:"succeeded"`
	Err          error         `json:"-"`
	Attempts     int           `json:"attempts"`
	PromptTokens int           `json:"prompt_tokens"`
	Latency      time.Duration `json:"latency"`
}

// ErrorText returns the stage error message, or "" for a successful stage.
func (r StageResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
