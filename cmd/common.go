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
	"path/filepath"

	"github.com/valpere/transbench/internal/completion"
	"github.com/valpere/transbench/internal/config"
	"github.com/valpere/transbench/internal/detector"
	"github.com/valpere/transbench/internal/executor"
	"github.com/valpere/transbench/internal/journal"
	"github.com/valpere/transbench/internal/pipeline"
	"github.com/valpere/transbench/internal/session"
)

// buildCompleter constructs the completion backend named in the config.
func buildCompleter(c *config.Config) (completion.Completer, error) {
	switch c.Backend {
	case config.BackendProxy:
		return completion.NewProxyClient(c.Proxy.URL), nil
	case config.BackendOpenAI:
		return completion.NewOpenAIClient(c.OpenAI.BaseURL, c.OpenAI.APIKeyEnv), nil
	case config.BackendOllama:
		return completion.NewOllamaClient(c.Ollama.BaseURL, c.Ollama.Model), nil
	}
	return nil, fmt.Errorf("unknown backend %q", c.Backend)
}

func buildOrchestrator(c *config.Config, observers ...pipeline.Observer) (*pipeline.Orchestrator, error) {
	completer, err := buildCompleter(c)
	if err != nil {
		return nil, err
	}
	exec := executor.New(completer, c.Timeout, logger)
	return pipeline.New(exec, pipeline.Config{
		Model:       c.Model,
		Temperature: &c.Temperature,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: c.Retry.MaxAttempts,
			BaseDelay:   c.Retry.BaseDelay,
			MaxDelay:    c.Retry.MaxDelay,
		},
	}, logger, observers...), nil
}

// openJournal returns nil when the journal is disabled.
func openJournal(c *config.Config) (*journal.Journal, error) {
	if !c.Journal.Enabled {
		return nil, nil
	}
	return openJournalAt(c.Journal.Path)
}

// openJournalAt creates the journal's directory when needed, so a fresh
// machine gets an empty journal rather than an error.
func openJournalAt(path string) (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

// buildController wires a session controller from the config. The returned
// cleanup closes the journal.
func buildController(c *config.Config, observers ...pipeline.Observer) (*session.Controller, func(), error) {
	orch, err := buildOrchestrator(c, observers...)
	if err != nil {
		return nil, nil, err
	}

	opts := []session.Option{session.WithLogger(logger)}
	cleanup := func() {}

	j, err := openJournal(c)
	if err != nil {
		// Runs still work without a journal.
		fmt.Fprintf(os.Stderr, "Journal disabled: %v\n", err)
	} else if j != nil {
		opts = append(opts, session.WithRecorder(j))
		cleanup = func() { j.Close() }
	}

	if c.DetectLanguage {
		opts = append(opts, session.WithLanguageHinter(detector.New()))
	}

	return session.New(orch, opts...), cleanup, nil
}
