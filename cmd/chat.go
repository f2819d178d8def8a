/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/export"
	"github.com/valpere/transbench/internal/prompt"
	"github.com/valpere/transbench/internal/render"
	"github.com/valpere/transbench/internal/session"
)

var (
	chatMode   string
	chatIntent string
	chatRole   string
	chatStages bool
	chatPlain  bool
)

const chatHelp = `Start an interactive session. Each line is submitted as translation input
under the current mode, intent and role.

Commands:
  /mode llm|agent     switch mode (the selected role is kept)
  /intent <id|label>  literal, reader or headline
  /role <id>          draft, refine, eval or score (LLM mode)
  /preview            show the prompt preview for the current selection
  /history            print the conversation so far
  /export <file>      write the transcript (.json, .yaml, .md or .html)
  /stages on|off      print intermediate Agent stage outputs
  /quit               leave

Ctrl-C during a run cancels it before the next stage starts.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive comparison session",
	Long:  chatHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := render.New(os.Stdout, render.Options{Plain: chatPlain})
		obs := &render.StageObserver{R: r, Outputs: chatStages}

		ctl, cleanup, err := buildController(cfg, obs)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := applySelection(ctl, chatMode, chatIntent, chatRole); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)

		rp := &repl{ctl: ctl, r: r, obs: obs, in: os.Stdin, out: os.Stdout, interrupts: sigCh}
		return rp.run(cmd.Context())
	},
}

// applySelection applies non-empty mode, intent and role values.
func applySelection(ctl *session.Controller, mode, intent, role string) error {
	if mode != "" {
		m, err := internal.ParseMode(mode)
		if err != nil {
			return err
		}
		if err := ctl.SetMode(m); err != nil {
			return err
		}
	}
	if intent != "" {
		i, err := catalog.ParseIntent(intent)
		if err != nil {
			return err
		}
		if err := ctl.SetIntent(i); err != nil {
			return err
		}
	}
	if role != "" {
		id, err := catalog.ParseRole(role)
		if err != nil {
			return err
		}
		if err := ctl.SelectRole(id); err != nil {
			return err
		}
	}
	return nil
}

type repl struct {
	ctl        *session.Controller
	r          *render.Renderer
	obs        *render.StageObserver
	in         io.Reader
	out        io.Writer
	interrupts <-chan os.Signal
}

func (rp *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rp.r.Messages(rp.ctl.Conversation())
	rp.status()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(rp.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(rp.out, "> ")
		var (
			line string
			ok   bool
		)
		select {
		case line, ok = <-lines:
			if !ok {
				fmt.Fprintln(rp.out)
				return nil
			}
		case <-rp.interrupts:
			fmt.Fprintln(rp.out)
			return nil
		case <-ctx.Done():
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := rp.command(line); quit {
				return nil
			}
			continue
		}
		rp.submit(ctx, line)
	}
}

// submit runs one input. An interrupt while the run is in progress cancels
// it between stages.
func (rp *repl) submit(ctx context.Context, input string) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-rp.interrupts:
			rp.r.Info("cancelling after the current stage...")
			cancel()
		case <-done:
		}
	}()

	before := len(rp.ctl.Conversation())
	if _, err := rp.ctl.Submit(runCtx, input); err != nil && len(rp.ctl.Conversation()) == before {
		rp.r.Error(err)
		return
	}

	msgs := rp.ctl.Conversation()
	if len(msgs) > before {
		// The user line is already on screen.
		rp.r.Messages(msgs[before+1:])
	}
}

func (rp *repl) status() {
	s := rp.ctl.Snapshot()
	rp.r.Status(s.Mode, s.Intent, s.SelectedRole)
}

// command handles a slash command and reports whether the session ends.
func (rp *repl) command(line string) bool {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	arg := strings.Join(args, " ")

	var err error
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(rp.out, chatHelp)
	case "/mode", "/intent", "/role":
		if arg == "" {
			err = fmt.Errorf("usage: %s <value>", name)
			break
		}
		switch name {
		case "/mode":
			err = applySelection(rp.ctl, arg, "", "")
		case "/intent":
			err = applySelection(rp.ctl, "", arg, "")
		default:
			err = applySelection(rp.ctl, "", "", arg)
			if err == nil && rp.ctl.Mode() == internal.ModeAgent {
				rp.r.Info("role saved; Agent mode runs every stage")
			}
		}
		if err == nil {
			rp.status()
		}
	case "/preview":
		s := rp.ctl.Snapshot()
		var text string
		text, err = prompt.Preview(s.Mode, s.Intent, s.SelectedRole)
		if err == nil {
			fmt.Fprintln(rp.out, text)
		}
	case "/history":
		rp.r.Messages(rp.ctl.Conversation())
	case "/export":
		err = rp.export(arg)
	case "/stages":
		switch arg {
		case "on":
			rp.obs.Outputs = true
		case "off":
			rp.obs.Outputs = false
		default:
			err = fmt.Errorf("usage: /stages on|off")
		}
	default:
		err = fmt.Errorf("unknown command %s (try /help)", name)
	}

	if err != nil {
		rp.r.Error(err)
	}
	return false
}

func (rp *repl) export(path string) error {
	if path == "" {
		return fmt.Errorf("usage: /export <file>")
	}
	format, err := export.FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	s := rp.ctl.Snapshot()
	t := export.Transcript{
		Title:      "transbench session",
		ExportedAt: time.Now(),
		Mode:       s.Mode,
		Intent:     s.Intent,
		Role:       s.SelectedRole,
		Messages:   s.Conversation,
	}
	if err := export.Write(f, format, t); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	rp.r.Info("exported %d messages to %s", len(s.Conversation), path)
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatMode, "mode", "", "initial mode: llm or agent")
	chatCmd.Flags().StringVar(&chatIntent, "intent", "", "initial intent: literal, reader or headline")
	chatCmd.Flags().StringVar(&chatRole, "role", "", "initial role for LLM mode")
	chatCmd.Flags().BoolVar(&chatStages, "stages", false, "print intermediate Agent stage outputs")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "disable colors and markdown rendering")
}
