// Package render prints conversation entries and pipeline progress to a
// terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/pipeline"
)

var (
	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	contentStyle = lipgloss.NewStyle().
			Padding(0, 2)
)

type Options struct {
	// Plain disables colors and markdown rendering.
	Plain bool
	// Style is a glamour style name; "" picks one from the terminal.
	Style string
	Width int
}

type Renderer struct {
	mu    sync.Mutex
	out   io.Writer
	plain bool
	md    *glamour.TermRenderer
}

func New(w io.Writer, opts Options) *Renderer {
	r := &Renderer{out: w, plain: opts.Plain}
	if opts.Plain {
		return r
	}

	width := opts.Width
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if opts.Style != "" {
		styleOpt = glamour.WithStandardStyle(opts.Style)
	}
	// Falls back to plain text when the renderer cannot be built.
	if md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width)); err == nil {
		r.md = md
	}
	return r
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) body(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "(empty)"
	}
	if r.md != nil {
		if out, err := r.md.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	if r.plain {
		return indent(text, "  ")
	}
	return contentStyle.Render(text)
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// Message prints one conversation entry.
func (r *Renderer) Message(m internal.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var header string
	switch {
	case m.Failed:
		header = r.style(errorStyle, "✗ "+speakerLabel(m))
	case m.Speaker == internal.SpeakerUser:
		header = r.style(userStyle, speakerLabel(m))
	case m.Speaker == internal.SpeakerSystem:
		header = r.style(systemStyle, speakerLabel(m))
	default:
		header = r.style(assistantStyle, speakerLabel(m))
	}
	if !m.At.IsZero() {
		header += " " + r.style(metaStyle, m.At.Format("15:04:05"))
	}

	fmt.Fprintln(r.out, header)
	if m.Failed || m.Speaker != internal.SpeakerAssistant {
		fmt.Fprintln(r.out, indent(strings.TrimSpace(m.Text), "  "))
	} else {
		fmt.Fprintln(r.out, r.body(m.Text))
	}
	fmt.Fprintln(r.out)
}

func speakerLabel(m internal.Message) string {
	label := string(m.Speaker)
	if m.StageID != "" {
		if role, err := catalog.LookupRole(m.StageID); err == nil {
			label += " · " + role.Name
		}
	}
	return label
}

// Messages prints entries in order.
func (r *Renderer) Messages(msgs []internal.Message) {
	for _, m := range msgs {
		r.Message(m)
	}
}

// Status prints the current selection on one line.
func (r *Renderer) Status(mode internal.Mode, intent internal.Intent, role internal.RoleID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parts := []string{"mode: " + string(mode)}
	if info, err := catalog.LookupIntent(intent); err == nil {
		parts = append(parts, "intent: "+info.Label)
	}
	if mode == internal.ModeLLM {
		parts = append(parts, "role: "+string(role))
	} else {
		parts = append(parts, "pipeline: "+catalog.PipelineLabel)
	}
	fmt.Fprintln(r.out, r.style(metaStyle, strings.Join(parts, " • ")))
}

// Error prints a tagged error line. Used for local validation failures,
// which never enter the conversation.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.style(errorStyle, "error:")+" "+err.Error())
}

// Info prints a dim informational line.
func (r *Renderer) Info(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.style(metaStyle, fmt.Sprintf(format, args...)))
}

// StageObserver prints stage progress as the pipeline runs. When Outputs is
// set, intermediate stage outputs are printed as well.
type StageObserver struct {
	R       *Renderer
	Outputs bool
}

var _ pipeline.Observer = (*StageObserver)(nil)

func (o *StageObserver) StageStarted(run *pipeline.Run, role internal.Role, attempt int) {
	label := stageLabel(run, role.ID, role.Name)
	if attempt > 1 {
		label += fmt.Sprintf(" (attempt %d)", attempt)
	}
	o.R.Info("→ %s", label)
}

func (o *StageObserver) StageFinished(run *pipeline.Run, result internal.StageResult) {
	role, _ := catalog.LookupRole(result.RoleID)
	label := stageLabel(run, result.RoleID, role.Name)
	if !result.Succeeded {
		o.R.Info("✗ %s failed after %s", label, result.Latency.Round(time.Millisecond))
		return
	}
	o.R.Info("✓ %s done in %s, ~%d prompt tokens", label, result.Latency.Round(time.Millisecond), result.PromptTokens)

	final := run.Mode == internal.ModeLLM || catalog.StageIndex(result.RoleID) == catalog.Stages()-1
	if o.Outputs && !final {
		o.R.mu.Lock()
		fmt.Fprintln(o.R.out, o.R.body(result.Output))
		o.R.mu.Unlock()
	}
}

func stageLabel(run *pipeline.Run, id internal.RoleID, name string) string {
	if run.Mode == internal.ModeAgent {
		return fmt.Sprintf("[%d/%d] %s", catalog.StageIndex(id)+1, catalog.Stages(), name)
	}
	return name
}
