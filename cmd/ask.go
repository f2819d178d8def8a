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
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/transbench/internal/pipeline"
	"github.com/valpere/transbench/internal/render"
)

var (
	askMode   string
	askIntent string
	askRole   string
	askStages bool
	askPlain  bool
	askFile   string
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Submit one input and print the reply",
	Long: `Submit a single input and print the reply. The input is taken from the
arguments, from --input, or from stdin when neither is given.

Exits with status 1 when the run fails or is cancelled.`,
	Example: `  transbench ask --mode agent --intent headline "Markets rally as inflation cools"
  echo "Hello" | transbench ask --role draft`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readAskInput(args, askFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		r := render.New(cmd.OutOrStdout(), render.Options{Plain: askPlain})
		var observers []pipeline.Observer
		if askStages {
			observers = append(observers, &render.StageObserver{R: render.New(os.Stderr, render.Options{Plain: askPlain}), Outputs: true})
		}

		ctl, cleanup, err := buildController(cfg, observers...)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := applySelection(ctl, askMode, askIntent, askRole); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		run, err := ctl.Submit(ctx, text)
		if err != nil {
			return err
		}

		msgs := ctl.Conversation()
		r.Message(msgs[len(msgs)-1])
		if !run.Succeeded() {
			return fmt.Errorf("run %s: %s", run.ID, run.State)
		}
		return nil
	},
}

func readAskInput(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(b), nil
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askMode, "mode", "llm", "mode: llm or agent")
	askCmd.Flags().StringVar(&askIntent, "intent", "literal", "intent: literal, reader or headline")
	askCmd.Flags().StringVar(&askRole, "role", "draft", "role for LLM mode")
	askCmd.Flags().BoolVar(&askStages, "stages", false, "print stage progress and outputs to stderr")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "disable colors and markdown rendering")
	askCmd.Flags().StringVarP(&askFile, "input", "i", "", "read the input from a file")
}
