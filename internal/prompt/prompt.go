// Package prompt builds the text sent to the model for one stage.
//
// Build is pure: identical contexts always yield byte-identical prompts.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
)

var stepMarks = []string{"①", "②", "③", "④", "⑤", "⑥"}

// Context is everything a prompt depends on. Role is the selected role in
// LLM mode and the current stage in Agent mode. PriorOutput is ignored for
// the first pipeline stage and in LLM mode.
type Context struct {
	Mode           internal.Mode
	Intent         internal.Intent
	Role           internal.RoleID
	Input          string
	PriorOutput    string
	SourceLanguage string
}

// Build renders the prompt for c.
func Build(c Context) (string, error) {
	intent, err := catalog.LookupIntent(c.Intent)
	if err != nil {
		return "", err
	}
	role, err := catalog.LookupRole(c.Role)
	if err != nil {
		return "", err
	}
	if c.Mode != internal.ModeLLM && c.Mode != internal.ModeAgent {
		return "", fmt.Errorf("unknown mode %q", c.Mode)
	}

	input := normalizeInput(c.Input)
	if input == "" {
		return "", internal.ErrEmptyInput
	}

	var sb strings.Builder
	writeHeader(&sb, c.Mode, intent, c.SourceLanguage)

	if c.Mode == internal.ModeLLM {
		fmt.Fprintf(&sb, "[역할] %s\n", role.Name)
		writeSnippet(&sb, role)
	} else {
		stage := catalog.StageIndex(role.ID)
		fmt.Fprintf(&sb, "[파이프라인] %s\n", catalog.PipelineLabel)
		fmt.Fprintf(&sb, "[단계] %d/%d %s\n", stage+1, catalog.Stages(), role.Name)
		writeSnippet(&sb, role)

		if stage > 0 {
			prev := catalog.Roles()[stage-1]
			fmt.Fprintf(&sb, "\n[이전 단계 출력: %s]\n", prev.Name)
			sb.WriteString(c.PriorOutput)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n[입력]\n")
	sb.WriteString(input)
	return sb.String(), nil
}

// Preview renders the prompt preview shown before the user types anything.
func Preview(mode internal.Mode, intentID internal.Intent, roleID internal.RoleID) (string, error) {
	intent, err := catalog.LookupIntent(intentID)
	if err != nil {
		return "", err
	}

	if mode == internal.ModeAgent {
		return fmt.Sprintf("[모드] Agent  |  [의도] %s\n[파이프라인] %s\n프롬프트에 과업과 제약을 명확히 적어주세요. (역할 선택은 비활성화됨)",
			intent.Label, catalog.PipelineLabel), nil
	}

	role, err := catalog.LookupRole(roleID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[모드] LLM  |  [의도] %s\n[역할] %s\n[역할 지시]\n- %s",
		intent.Label, role.Name, role.Snippet), nil
}

func writeHeader(sb *strings.Builder, mode internal.Mode, intent catalog.IntentInfo, sourceLang string) {
	fmt.Fprintf(sb, "[모드] %s  |  [의도] %s\n", mode, intent.Label)
	if sourceLang != "" {
		fmt.Fprintf(sb, "[원문 언어] %s\n", sourceLang)
	}
	sb.WriteString("[과업 단계]\n")
	for i, step := range intent.Steps {
		mark := fmt.Sprintf("%d.", i+1)
		if i < len(stepMarks) {
			mark = stepMarks[i]
		}
		fmt.Fprintf(sb, "%s %s\n", mark, step)
	}
}

func writeSnippet(sb *strings.Builder, role internal.Role) {
	sb.WriteString("[역할 지시]\n- ")
	sb.WriteString(role.Snippet)
	sb.WriteString("\n")
}

// normalizeInput trims whitespace and applies Unicode NFC so that visually
// identical inputs produce identical prompts.
func normalizeInput(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
