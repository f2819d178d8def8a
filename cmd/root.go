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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/valpere/transbench/internal/config"
	"github.com/valpere/transbench/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile   string
	verbose   bool
	noJournal bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "transbench",
	Short: "Compare single-role LLM translation with a four-stage agent pipeline",
	Long: `transbench sends translation tasks to a chat-completion model in one of two modes:

  LLM    one call with a selected role (draft, refine, eval or score)
  Agent  Draft → Refinement → Evaluation → Score, each stage reading the previous output

Use "transbench chat" for an interactive session, "transbench ask" for a single
submission and "transbench serve" to run the chat-completion proxy.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		config.Init(v, cfgFile)

		var err error
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		if noJournal {
			cfg.Journal.Enabled = false
		}

		// Serving logs every request; interactive commands only warn so the
		// transcript stays readable.
		level := zapcore.WarnLevel
		if cmd.Name() == "serve" {
			level = zapcore.InfoLevel
		}
		logger, err = logging.New(cfg.Verbose, level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.transbench.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	flags.String("backend", config.BackendProxy, "completion backend: proxy, openai or ollama")
	flags.String("model", "", "model name (default gpt-4o-mini)")
	flags.Float64("temperature", 0, "sampling temperature 0..2 (default 0.7)")
	flags.Duration("timeout", 0, "per-call timeout (default 60s)")
	flags.String("proxy-url", "", "chat-completion proxy URL")
	flags.Int("max-attempts", 0, "attempts per stage including the first (1 = no retries)")
	flags.Bool("detect-language", false, "name the detected source language in prompts")
	flags.BoolVar(&noJournal, "no-journal", false, "do not record runs")

	for key, name := range map[string]string{
		"verbose":            "verbose",
		"backend":            "backend",
		"model":              "model",
		"temperature":        "temperature",
		"timeout":            "timeout",
		"proxy.url":          "proxy-url",
		"retry.max_attempts": "max-attempts",
		"detect_language":    "detect-language",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
