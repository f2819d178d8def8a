// Package export writes a session transcript as JSON, YAML, Markdown or
// HTML.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported export extension %q (want .json, .yaml, .md or .html)", filepath.Ext(path))
}

// Transcript is the exported view of a session.
type Transcript struct {
	Title      string             `json:"title" yaml:"title"`
	ExportedAt time.Time          `json:"exported_at" yaml:"exported_at"`
	Mode       internal.Mode      `json:"mode" yaml:"mode"`
	Intent     internal.Intent    `json:"intent" yaml:"intent"`
	Role       internal.RoleID    `json:"role,omitempty" yaml:"role,omitempty"`
	Messages   []internal.Message `json:"messages" yaml:"messages"`
}

func Write(w io.Writer, f Format, t Transcript) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(t)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(t))
		return err
	case FormatHTML:
		return writeHTML(w, t)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Markdown renders the transcript as a Markdown document, one section per
// message.
func Markdown(t Transcript) string {
	var sb strings.Builder

	title := t.Title
	if title == "" {
		title = "transbench transcript"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- Mode: %s\n", t.Mode)
	if info, err := catalog.LookupIntent(t.Intent); err == nil {
		fmt.Fprintf(&sb, "- Intent: %s\n", info.Label)
	}
	if t.Mode == internal.ModeLLM {
		if role, err := catalog.LookupRole(t.Role); err == nil {
			fmt.Fprintf(&sb, "- Role: %s\n", role.Name)
		}
	} else {
		fmt.Fprintf(&sb, "- Pipeline: %s\n", catalog.PipelineLabel)
	}
	if !t.ExportedAt.IsZero() {
		fmt.Fprintf(&sb, "- Exported: %s\n", t.ExportedAt.Format(time.RFC3339))
	}

	for _, m := range t.Messages {
		fmt.Fprintf(&sb, "\n## %s\n\n", messageHeading(m))
		sb.WriteString(strings.TrimSpace(m.Text))
		sb.WriteString("\n")
	}
	return sb.String()
}

func messageHeading(m internal.Message) string {
	heading := string(m.Speaker)
	if heading != "" {
		heading = strings.ToUpper(heading[:1]) + heading[1:]
	}
	if m.StageID != "" {
		if role, err := catalog.LookupRole(m.StageID); err == nil {
			heading += " · " + role.Name
		}
	}
	if m.Failed {
		heading += " (error)"
	}
	return heading
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

func writeHTML(w io.Writer, t Transcript) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(t)), &body); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}

	title := t.Title
	if title == "" {
		title = "transbench transcript"
	}
	_, err := fmt.Fprintf(w, htmlPage, html.EscapeString(title), body.String())
	return err
}

const htmlPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; line-height: 1.5; }
h2 { border-bottom: 1px solid #ddd; font-size: 1.1rem; }
</style>
</head>
<body>
%s</body>
</html>
`
