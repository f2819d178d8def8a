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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/transbench/internal/completion"
	"github.com/valpere/transbench/internal/proxy"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat-completion proxy",
	Long: `Serve POST /api/chat, forwarding chat completions to the OpenAI-compatible
provider configured under openai.*. The provider key is read from the
environment variable named by openai.api_key_env on every request.

The proxy backend of chat and ask talks to this endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := completion.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKeyEnv)
		if os.Getenv(client.KeyEnv()) == "" {
			fmt.Fprintf(os.Stderr, "Warning: %s is not set; requests will fail until it is\n", client.KeyEnv())
		}

		handler := proxy.NewServer(client, proxy.Options{
			Raw:     cfg.Serve.Raw,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
		srv := &http.Server{
			Addr:              cfg.Serve.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("proxy listening", zap.String("addr", srv.Addr), zap.Bool("raw", cfg.Serve.Raw))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("shutting down proxy")
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8787)")
	serveCmd.Flags().Bool("raw", false, "include the provider completion object in responses")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("serve.raw", serveCmd.Flags().Lookup("raw"))
}
