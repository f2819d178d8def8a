package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/valpere/transbench/internal"
)

func sampleTranscript() Transcript {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return Transcript{
		Title:      "Headline test",
		ExportedAt: at,
		Mode:       internal.ModeAgent,
		Intent:     internal.IntentHeadline,
		Messages: []internal.Message{
			{Speaker: internal.SpeakerUser, Text: "Markets rally <b>today</b>", At: at},
			{Speaker: internal.SpeakerAssistant, Text: "**증시 급등**\n점수: 9/10", StageID: internal.RoleScore, At: at},
			{Speaker: internal.SpeakerAssistant, Text: "(Agent) stage 3/4 failed", StageID: internal.RoleEval, Failed: true, At: at},
		},
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"out.json":     FormatJSON,
		"out.YAML":     FormatYAML,
		"out.yml":      FormatYAML,
		"notes/out.md": FormatMarkdown,
		"out.html":     FormatHTML,
		"out.htm":      FormatHTML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("out.txt")
	assert.Error(t, err)
}

func TestWrite_JSON(t *testing.T) {
	tr := sampleTranscript()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, tr))

	var got Transcript
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(tr, got); diff != "" {
		t.Errorf("json transcript mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, buf.String(), "<b>today</b>", "html must not be escaped in json")
}

func TestWrite_YAML(t *testing.T) {
	tr := sampleTranscript()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, tr))

	var got Transcript
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(tr, got); diff != "" {
		t.Errorf("yaml transcript mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, buf.String(), "stage_id: score")
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sampleTranscript())

	assert.True(t, strings.HasPrefix(out, "# Headline test\n"))
	assert.Contains(t, out, "- Mode: Agent")
	assert.Contains(t, out, "- Intent: 기사 헤드라인 번역")
	assert.Contains(t, out, "- Pipeline: Draft → Refinement → Evaluation → Score (자동)")
	assert.Contains(t, out, "## User\n\nMarkets rally <b>today</b>")
	assert.Contains(t, out, "## Assistant · Score Agent\n")
	assert.Contains(t, out, "## Assistant · Evaluation Agent (error)\n")
}

func TestMarkdown_LLMRole(t *testing.T) {
	tr := Transcript{Mode: internal.ModeLLM, Intent: internal.IntentLiteral, Role: internal.RoleRefine}
	out := Markdown(tr)

	assert.Contains(t, out, "# transbench transcript")
	assert.Contains(t, out, "- Role: Refinement Agent")
	assert.NotContains(t, out, "Pipeline")
}

func TestWrite_HTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatHTML, sampleTranscript()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Headline test</title>")
	assert.Contains(t, out, "<h1>Headline test</h1>")
	assert.Contains(t, out, "<strong>증시 급등</strong><br>")
	assert.NotContains(t, out, "<b>today</b>", "raw html from messages must not pass through")
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, Format("pdf"), sampleTranscript()))
}
