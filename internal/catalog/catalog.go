// Package catalog holds the fixed role catalog and intent enumeration.
// Both are process-wide constants; accessors return copies.
package catalog

import (
	"strings"

	"github.com/valpere/transbench/internal"
)

// PipelineLabel is the human-readable Agent mode stage order.
const PipelineLabel = "Draft → Refinement → Evaluation → Score (자동)"

var roles = [...]internal.Role{
	{
		ID:          internal.RoleDraft,
		Name:        "Draft Agent",
		Description: "초안 번역 생성 (Literal / Sense-for-sense / Free)",
		Snippet:     "You are a Draft Agent. Produce three translation variants for the given source: (1) Literal Translation, (2) Sense-for-Sense Translation, (3) Free Translation. Use clear section headers and keep key terms consistent across variants.",
	},
	{
		ID:          internal.RoleRefine,
		Name:        "Refinement Agent",
		Description: "요구 조건 반영해 Refined Translation 도출",
		Snippet:     "You are a Refinement Agent. Merge strengths from prior variants, apply user constraints (audience, tone, style guide), and output a single Refined Translation with a brief rationale of edits.",
	},
	{
		ID:          internal.RoleEval,
		Name:        "Evaluation Agent",
		Description: "Faithfulness/Expressiveness/Elegance 평가",
		Snippet:     "You are an Evaluation Agent. Evaluate the Refined Translation for Faithfulness, Expressiveness, and Elegance. Provide short justifications and concrete improvement suggestions.",
	},
	{
		ID:          internal.RoleScore,
		Name:        "Score Agent",
		Description: "최종 점수 및 개선 제안 요약",
		Snippet:     "You are a Scoring Agent. Provide an overall score and the top 3 actionable fixes to improve the translation further.",
	},
}

// IntentInfo describes one translation task type.
type IntentInfo struct {
	ID         internal.Intent
	Label      string
	Complexity int
	Steps      []string
}

var intents = [...]IntentInfo{
	{
		ID:         internal.IntentLiteral,
		Label:      "단순 직역",
		Complexity: 1,
		Steps:      []string{"번역 지시"},
	},
	{
		ID:         internal.IntentReader,
		Label:      "독자 맞춤 번역",
		Complexity: 2,
		Steps: []string{
			"목표 독자를 고려한 난이도, 어조 결정",
			"지침 포함 번역 지시",
		},
	},
	{
		ID:         internal.IntentHeadline,
		Label:      "기사 헤드라인 번역",
		Complexity: 3,
		Steps: []string{
			"목표 독자를 고려한 난이도, 어조 결정",
			"언어, 문화를 고려한 적합성 결정",
			"지침 포함 번역 지시",
		},
	},
}

// Roles returns the catalog in pipeline order.
func Roles() []internal.Role {
	out := make([]internal.Role, len(roles))
	copy(out, roles[:])
	return out
}

// Stages returns the number of pipeline stages.
func Stages() int {
	return len(roles)
}

// LookupRole returns the role with the given id.
func LookupRole(id internal.RoleID) (internal.Role, error) {
	for _, r := range roles {
		if r.ID == id {
			return r, nil
		}
	}
	return internal.Role{}, &internal.InvalidRoleError{Value: string(id)}
}

// ParseRole accepts a role id in any case.
func ParseRole(s string) (internal.RoleID, error) {
	r, err := LookupRole(internal.RoleID(strings.ToLower(strings.TrimSpace(s))))
	if err != nil {
		return "", &internal.InvalidRoleError{Value: s}
	}
	return r.ID, nil
}

// StageIndex returns the zero-based pipeline position of id, or -1.
func StageIndex(id internal.RoleID) int {
	for i, r := range roles {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Intents returns all intents ordered by complexity.
func Intents() []IntentInfo {
	out := make([]IntentInfo, len(intents))
	for i, in := range intents {
		in.Steps = append([]string(nil), in.Steps...)
		out[i] = in
	}
	return out
}

// LookupIntent returns the description of a known intent.
func LookupIntent(id internal.Intent) (IntentInfo, error) {
	for _, in := range intents {
		if in.ID == id {
			in.Steps = append([]string(nil), in.Steps...)
			return in, nil
		}
	}
	return IntentInfo{}, &internal.InvalidIntentError{Value: string(id)}
}

// ParseIntent accepts either an intent id ("headline") or its label
// ("기사 헤드라인 번역").
func ParseIntent(s string) (internal.Intent, error) {
	v := strings.TrimSpace(s)
	for _, in := range intents {
		if strings.EqualFold(v, string(in.ID)) || v == in.Label {
			return in.ID, nil
		}
	}
	return "", &internal.InvalidIntentError{Value: s}
}
